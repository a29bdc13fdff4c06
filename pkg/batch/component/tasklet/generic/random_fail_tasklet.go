package generic

import (
	"context"
	"math/rand/v2"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/configbinder"
	exception "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/logger"
)

// RandomFailTaskletConfig holds the properties of a RandomFailTasklet.
type RandomFailTaskletConfig struct {
	// FailRate is the probability of failure, between 0 and 1. Defaults to 0.5.
	FailRate float64 `yaml:"failRate"`
	// FailCount makes the first FailCount runs fail and the later ones succeed. Zero keeps
	// failures probabilistic.
	FailCount int `yaml:"failCount"`
}

// RandomFailTasklet is a [port.Tasklet] that fails with a configured probability or for a
// configured number of runs. It exercises conditional routing and restart.
type RandomFailTasklet struct {
	name string
	cfg  RandomFailTaskletConfig
}

// NewRandomFailTasklet creates a RandomFailTasklet from properties (see RandomFailTaskletConfig).
func NewRandomFailTasklet(name string, properties map[string]string) (*RandomFailTasklet, error) {
	cfg := RandomFailTaskletConfig{FailRate: 0.5}
	if err := configbinder.BindProperties(properties, &cfg); err != nil {
		return nil, exception.NewBatchError(name, "failed to bind RandomFailTasklet properties", err, false, false)
	}
	return &RandomFailTasklet{name: name, cfg: cfg}, nil
}

func (t *RandomFailTasklet) runKey() string {
	return t.name + ".current_run"
}

// Execute fails or succeeds. The run count is kept in the step context, so a restarted
// step continues counting from the previous execution.
func (t *RandomFailTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (model.RepeatStatus, error) {
	run, _ := stepExecution.ExecutionContext.GetInt(t.runKey())
	run++
	stepExecution.ExecutionContext.Put(t.runKey(), run)

	var shouldFail bool
	if t.cfg.FailCount > 0 {
		shouldFail = run <= t.cfg.FailCount
	} else {
		shouldFail = rand.Float64() < t.cfg.FailRate
	}

	if shouldFail {
		logger.Errorf("RandomFailTasklet '%s' (Run %d): Intentionally failing (Rate: %.2f, Count: %d).", t.name, run, t.cfg.FailRate, t.cfg.FailCount)
		return model.RepeatStatusFinished, exception.NewBatchErrorf(t.name, "Random failure occurred on run %d", run)
	}
	logger.Infof("RandomFailTasklet '%s' (Run %d): Completed successfully.", t.name, run)
	return model.RepeatStatusFinished, nil
}

var _ port.Tasklet = (*RandomFailTasklet)(nil)
