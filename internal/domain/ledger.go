package domain

// RowLine is one team's entry in a ledger row: the point deltas earned on
// this toss-up and the team's running total as of this row.
type RowLine struct {
	P     int `json:"p"`
	TU    int `json:"tu"`
	B     int `json:"b"`
	Score int `json:"score"`
}

// Row is one toss-up's worth of scoring, keyed by team id.
type Row struct {
	Num   int                 `json:"num"`
	Teams map[string]*RowLine `json:"teams"`
}
