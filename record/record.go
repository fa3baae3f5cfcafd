// Package record defines the data model shared by the pricewatch pipeline
// stages: fetch results, price observations, change records, and per-cycle
// statistics. All records are created once per (product, cycle) and never
// mutated afterwards.
package record

import "time"

// TrackedProduct is one entry of the monitored set. ProductID is derived
// deterministically from the normalized URL and is unique within the set.
type TrackedProduct struct {
	ProductID string `json:"product_id"`
	URL       string `json:"url"`
}

// FetchStatus describes the outcome of one page fetch.
type FetchStatus string

const (
	FetchSuccess   FetchStatus = "success"
	FetchError     FetchStatus = "error"
	FetchException FetchStatus = "exception"
)

// PageFetchResult is the outcome of fetching one product page in one cycle.
type PageFetchResult struct {
	ProductID     string      `json:"product_id"`
	URL           string      `json:"url"`
	Cycle         int         `json:"cycle"`
	Index         int         `json:"index"`
	Status        FetchStatus `json:"status"`
	StatusCode    int         `json:"status_code"`
	Markup        string      `json:"-"`
	MarkupFile    string      `json:"filename,omitempty"`
	ContentLength int         `json:"content_length,omitempty"`
	Error         string      `json:"error,omitempty"`
	Timestamp     time.Time   `json:"timestamp"`
}

// PriceObservation is one successfully extracted price. The sequence of
// observations per product across cycles forms its price history.
type PriceObservation struct {
	ProductID      string    `json:"product_id"`
	URL            string    `json:"url"`
	Cycle          int       `json:"cycle"`
	Index          int       `json:"index"`
	Price          float64   `json:"price"`
	PriceFormatted string    `json:"price_formatted"`
	Currency       string    `json:"currency"`
	Source         string    `json:"source"`
	Timestamp      time.Time `json:"timestamp"`
}

// ChangeStatus classifies a price comparison outcome.
type ChangeStatus string

const (
	ChangeNew       ChangeStatus = "new"
	ChangeNone      ChangeStatus = "no_change"
	ChangeIncreased ChangeStatus = "increased"
	ChangeDecreased ChangeStatus = "decreased"
	ChangeError     ChangeStatus = "error"
)

// ChangeRecord is the result of comparing a current observation against the
// most recent prior one for the same product. Exactly one record exists per
// current observation per cycle, no_change included.
type ChangeRecord struct {
	ProductID         string       `json:"product_id"`
	URL               string       `json:"url"`
	Cycle             int          `json:"cycle"`
	Index             int          `json:"index"`
	CurrentPrice      float64      `json:"current_price"`
	CurrentFormatted  string       `json:"current_price_formatted"`
	PreviousPrice     *float64     `json:"previous_price"`
	PreviousFormatted string       `json:"previous_price_formatted"`
	ChangeAmount      *float64     `json:"change_amount"`
	ChangePercentage  *float64     `json:"change_percentage"`
	Status            ChangeStatus `json:"change_status"`
	Significance      string       `json:"significance,omitempty"`
	Source            string       `json:"source"`
	Timestamp         time.Time    `json:"timestamp"`
}

// Changed reports whether the record represents an actual price movement.
func (c *ChangeRecord) Changed() bool {
	return c.Status == ChangeIncreased || c.Status == ChangeDecreased
}

// CycleStats aggregates one monitoring cycle. Persisting the same cycle
// number again overwrites the stored row.
type CycleStats struct {
	Cycle            int       `json:"cycle"`
	TotalProducts    int       `json:"total_products"`
	SuccessfulParses int       `json:"successful_parses"`
	FailedParses     int       `json:"failed_parses"`
	PriceChanges     int       `json:"price_changes"`
	Increased        int       `json:"increased"`
	Decreased        int       `json:"decreased"`
	NewProducts      int       `json:"new_products"`
	Timestamp        time.Time `json:"timestamp"`
}

// CycleResult is the per-cycle bundle exposed to callers after each pass.
type CycleResult struct {
	Cycle   int                `json:"cycle"`
	Prices  []PriceObservation `json:"prices"`
	Changes []ChangeRecord     `json:"changes"`
	Stats   CycleStats         `json:"stats"`
}
