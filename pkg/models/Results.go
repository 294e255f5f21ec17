package models

type SyncResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Removed    int
}

func (r *SyncResult) Add(other SyncResult) {
	r.Downloaded += other.Downloaded
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Removed += other.Removed
}

type ConversionResult struct {
	Converted int
	Skipped   int
	Failed    int
}

type PublishResult struct {
	Uploaded int
	Skipped  int
	Failed   int
}
