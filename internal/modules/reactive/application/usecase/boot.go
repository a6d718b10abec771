package usecase

import (
	"fmt"
	"log/slog"

	"reactWs/internal/modules/reactive/application/port"
	"reactWs/internal/modules/reactive/domain"
)

// BootUseCase binds handler prototypes to their paths and creates the topics they declare.
type BootUseCase struct {
	handlers port.HandlerBinder
	topics   port.TopicProvider
}

func NewBootUseCase(handlers port.HandlerBinder, topics port.TopicProvider) *BootUseCase {
	return &BootUseCase{handlers: handlers, topics: topics}
}

// Execute stops at the first failure; the caller is expected to abort startup.
func (uc *BootUseCase) Execute(protos ...domain.Handler) error {
	for _, proto := range protos {
		path, refs, err := uc.handlers.Bind(proto)
		if err != nil {
			return fmt.Errorf("bind %T: %w", proto, err)
		}
		for _, ref := range refs {
			if _, err := uc.topics.Prime(ref); err != nil {
				return fmt.Errorf("bind %T topic %q: %w", proto, ref.Name, err)
			}
		}
		slog.Info("reactive handler bound", slog.String("path", path), slog.String("type", fmt.Sprintf("%T", proto)), slog.Int("topics", len(refs)))
	}
	return nil
}
