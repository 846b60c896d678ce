package quantum

import (
	"io"

	"github.com/charmbracelet/log"
)

// MaxQubits is the widest root store a Computer can address. Basis states
// are held in a uint64.
const MaxQubits = 64

// Config holds the numeric tolerances and randomness source of a Computer.
type Config struct {
	// Epsilon is the tolerance for unitarity checks and normalization.
	Epsilon float64
	// PruneEpsilon is the magnitude below which amplitudes are dropped.
	PruneEpsilon float64
	// Seed feeds the measurement PRNG.
	Seed int64
	// MaxAttempts bounds the retries of order finding.
	MaxAttempts int
	Logger      *log.Logger
}

func NewConfig() *Config {
	return &Config{
		Epsilon:      1e-6,
		PruneEpsilon: 1e-9,
		Seed:         1,
		MaxAttempts:  8,
		Logger:       log.New(io.Discard),
	}
}
