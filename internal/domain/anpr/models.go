package anpr

type Candidate struct {
	Plate      string  `json:"plate"`
	Confidence float64 `json:"confidence"`
}

// RecognitionResult is the outcome of one recognition pass. A nil BestPlate means
// no plate was detected.
type RecognitionResult struct {
	BestPlate  *string `json:"best_plate"`
	Confidence float64 `json:"confidence"`
	Frame      *int    `json:"frame,omitempty"`
}

func (r RecognitionResult) HasPlate() bool {
	return r.BestPlate != nil
}

func (r RecognitionResult) Plate() string {
	if r.BestPlate == nil {
		return ""
	}
	return *r.BestPlate
}

type SpotStatus string

const (
	SpotOccupied SpotStatus = "occupied"
	SpotFree     SpotStatus = "free"
)

type Spot struct {
	ID     int64      `json:"id"`
	Plate  string     `json:"plate"`
	Status SpotStatus `json:"status"`
}

type FrameSample struct {
	Index int
	Image []byte
}

type RegistrationOutcome string

const (
	RegistrationCreated        RegistrationOutcome = "created"
	RegistrationAlreadyPresent RegistrationOutcome = "already_present"
	RegistrationFailed         RegistrationOutcome = "failed"
	RegistrationSkipped        RegistrationOutcome = "skipped"
)
