package ml

import (
	"encoding/json"
	"fmt"

	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
	"github.com/ricesearch/complaint-classifier/internal/pkg/hash"
)

// FormatVersion is the version of the encoded model envelope.
const FormatVersion = 1

type envelope struct {
	Kind     Kind            `json:"kind"`
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	State    json.RawMessage `json:"state"`
}

// New returns an unfitted model of the given kind with default parameters.
func New(kind Kind) (Model, error) {
	switch kind {
	case KindLogisticRegression:
		return NewLogisticRegression(DefaultLogisticParams()), nil
	case KindNaiveBayes:
		return NewNaiveBayes(DefaultNaiveBayesParams()), nil
	case KindRandomForest:
		return NewRandomForest(DefaultForestParams()), nil
	case KindLinearSVM:
		return NewLinearSVM(DefaultSVMParams()), nil
	case KindGradientBoosting:
		return NewGradientBoosting(DefaultBoostingParams()), nil
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown model kind: %q", kind))
	}
}

// Marshal encodes a fitted model with its kind and a checksum of its state.
func Marshal(m Model) ([]byte, error) {
	state, err := json.Marshal(m)
	if err != nil {
		if errors.CodeOf(err) == "" {
			err = errors.Wrap(errors.CodeMLError, fmt.Sprintf("failed to encode %s", m.Kind()), err)
		}
		return nil, err
	}
	return json.Marshal(envelope{
		Kind:     m.Kind(),
		Version:  FormatVersion,
		Checksum: hash.SHA256(state),
		State:    state,
	})
}

// Unmarshal decodes a model written by Marshal.
func Unmarshal(data []byte) (Model, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, "malformed model envelope", err)
	}
	if env.Version != FormatVersion {
		return nil, errors.ValidationError(fmt.Sprintf("unsupported model format version %d", env.Version))
	}
	if hash.SHA256(env.State) != env.Checksum {
		return nil, errors.ValidationError(fmt.Sprintf("%s state checksum mismatch", env.Kind))
	}

	m, err := New(env.Kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.State, m); err != nil {
		return nil, errors.Wrap(errors.CodeValidation, fmt.Sprintf("failed to decode %s", env.Kind), err)
	}
	return m, nil
}
