package domain

type TaskOrigin string

const (
	OriginUploaded TaskOrigin = "uploaded"
	OriginGallery  TaskOrigin = "gallery"
	OriginSample   TaskOrigin = "sample"
)

type ResultStatus string

const (
	ResultSuccess    ResultStatus = "success"
	ResultError      ResultStatus = "error"
	ResultProcessing ResultStatus = "processing"
)

type BatchStatus string

const (
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchError      BatchStatus = "error"
)

// ImageTask is one image to send to the provider. It is not modified after
// the batch is accepted.
type ImageTask struct {
	SourceURL string     `json:"sourceUrl"`
	Filename  string     `json:"filename"`
	Origin    TaskOrigin `json:"origin"`
}

type ProcessingResult struct {
	OriginalURL  string       `json:"originalUrl"`
	ProcessedURL string       `json:"processedUrl"`
	Filename     string       `json:"filename"`
	Status       ResultStatus `json:"status"`
	Message      string       `json:"message,omitempty"`
	JobID        string       `json:"jobId,omitempty"`
}

// FailedResult builds the error result for a task; the processed URL falls
// back to the original so clients always have something to render.
func FailedResult(task ImageTask, err error) ProcessingResult {
	return ProcessingResult{
		OriginalURL:  task.SourceURL,
		ProcessedURL: task.SourceURL,
		Filename:     task.Filename,
		Status:       ResultError,
		Message:      err.Error(),
	}
}

type ProgressSnapshot struct {
	Total     int                `json:"total"`
	Completed int                `json:"completed"`
	Current   string             `json:"current"`
	Status    BatchStatus        `json:"status"`
	Results   []ProcessingResult `json:"results"`
}

func NewProgressSnapshot(total int) *ProgressSnapshot {
	s := &ProgressSnapshot{
		Total:   total,
		Status:  BatchProcessing,
		Results: make([]ProcessingResult, 0, total),
	}
	if total == 0 {
		s.Status = BatchCompleted
	}
	return s
}

// Append records one finished task. Completed always equals len(Results)
// afterwards; the batch flips to completed when every task is in.
func (s *ProgressSnapshot) Append(r ProcessingResult) {
	s.Results = append(s.Results, r)
	s.Completed = len(s.Results)
	if s.Completed >= s.Total {
		s.Current = ""
		if s.Status == BatchProcessing {
			s.Status = BatchCompleted
		}
	}
}

func (s *ProgressSnapshot) IsTerminal() bool {
	return s.Status == BatchCompleted || s.Status == BatchError
}

func (s *ProgressSnapshot) Clone() *ProgressSnapshot {
	c := *s
	c.Results = make([]ProcessingResult, len(s.Results))
	copy(c.Results, s.Results)
	return &c
}
