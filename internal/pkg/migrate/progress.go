package migrate

import "time"

type Progress struct {
	Database   string
	Collection string
	started    time.Time
	total      int64
	offset     int64
	processed  int64
	indexed    int64
	rejected   int64
}

func NewProgress(database string, collection string) *Progress {
	return &Progress{
		Database:   database,
		Collection: collection,
	}
}

// Start sets the number of documents to process and where the run starts
func (p *Progress) Start(total int64, offset int64) {
	p.started = time.Now()
	p.total = total
	p.offset = offset
	p.processed = offset
}

func (p *Progress) Increment(indexed int, rejected int) {
	p.indexed += int64(indexed)
	p.rejected += int64(rejected)
	p.processed += int64(indexed + rejected)
}

func (p *Progress) Progress() float64 {
	if p.total <= 0 {
		return 0
	}
	return float64(p.processed) / float64(p.total)
}

func (p *Progress) Total() int64     { return p.total }
func (p *Progress) Processed() int64 { return p.processed }
func (p *Progress) Indexed() int64   { return p.indexed }
func (p *Progress) Rejected() int64  { return p.rejected }

// Documents per second since the run started, resumed documents excluded
func (p *Progress) Rate() float64 {
	elapsed := time.Since(p.started).Seconds()
	if p.started.IsZero() || elapsed <= 0 {
		return 0
	}
	return float64(p.processed-p.offset) / elapsed
}
