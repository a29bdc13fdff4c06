package validator_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/surfin-tutorial/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-tutorial/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/core/job/validator"
	"github.com/tigerroll/surfin-tutorial/pkg/batch/support/util/exception"
)

func params(kv ...string) model.JobParameters {
	p := model.NewJobParameters()
	for i := 0; i+1 < len(kv); i += 2 {
		p.PutString(kv[i], kv[i+1])
	}
	return p
}

func TestSuffixValidator(t *testing.T) {
	v := validator.NewSuffixValidator("fileName", []string{"csv"}, validator.WithMessage("This is not csv file"))

	assert.NoError(t, v.Validate(params("fileName", "players.CSV")))
	err := v.Validate(params("fileName", "players.txt"))
	var ve *exception.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, err.Error(), "This is not csv file")
	assert.Error(t, v.Validate(params()))
}

func TestDefaultValidator(t *testing.T) {
	strict := validator.NewDefaultValidator([]string{"fileName"}, []string{"run.id"})
	assert.NoError(t, strict.Validate(params("fileName", "a.csv", "run.id", "1")))
	assert.ErrorContains(t, strict.Validate(params("run.id", "1")), "missing required keys [fileName]")
	assert.ErrorContains(t, strict.Validate(params("fileName", "a.csv", "extra", "x")), "unknown keys [extra]")

	lenient := validator.NewDefaultValidator([]string{"fileName"}, nil)
	assert.NoError(t, lenient.Validate(params("fileName", "a.csv", "extra", "x")))
}

func TestCompositeValidator_ShortCircuits(t *testing.T) {
	calls := 0
	counting := port.JobParametersValidatorFunc(func(model.JobParameters) error {
		calls++
		return nil
	})
	c := validator.NewCompositeValidator(
		validator.NewDefaultValidator([]string{"fileName"}, nil),
		counting,
	)

	assert.Error(t, c.Validate(params()))
	assert.Equal(t, 0, calls)
	assert.NoError(t, c.Validate(params("fileName", "x")))
	assert.Equal(t, 1, calls)
}
