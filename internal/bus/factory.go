package bus

import (
	"fmt"
	"strings"

	"github.com/ricesearch/complaint-classifier/internal/config"
	"github.com/ricesearch/complaint-classifier/internal/pkg/errors"
	"github.com/ricesearch/complaint-classifier/internal/pkg/logger"
)

// NewBus creates a new Bus instance based on the configuration. When a
// journal path is configured the bus is wrapped in a LoggedBus.
func NewBus(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	if log == nil {
		log = logger.Discard()
	}
	log = log.WithComponent("bus")

	var inner Bus
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		inner = NewMemoryBus(log)

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, errors.New(errors.CodeValidation, "kafka brokers not configured")
		}

		consumerGroup := cfg.KafkaGroup
		if consumerGroup == "" {
			consumerGroup = "complaint-classifier"
		}

		kb, err := NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: consumerGroup,
			ClientID:      "complaint-classifier-bus",
		}, log)
		if err != nil {
			return nil, err
		}
		inner = kb

	default:
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}

	if cfg.JournalPath == "" {
		return inner, nil
	}

	journal, err := NewEventLogger(cfg.JournalPath, true)
	if err != nil {
		inner.Close()
		return nil, errors.Wrap(errors.CodeStorage, "opening event journal", err)
	}
	return NewLoggedBus(inner, journal, log), nil
}
