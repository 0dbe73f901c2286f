package domain

// ImportReport summarizes one corpus import.
type ImportReport struct {
	Rows      int `json:"rows"`
	Upserted  int `json:"upserted"`
	Skipped   int `json:"skipped"`
	Published int `json:"published"`
}
