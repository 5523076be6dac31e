package render

import (
	"log/slog"

	"github.com/myplaces/placemap/pkg/core"
)

// LogRenderer writes every visual update to a slog.Logger. It is the renderer
// used when no map frontend is attached.
type LogRenderer struct {
	logger *slog.Logger
}

// NewLogRenderer creates a LogRenderer. A nil logger uses slog.Default().
func NewLogRenderer(logger *slog.Logger) *LogRenderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRenderer{logger: logger.With("component", "renderer")}
}

func (r *LogRenderer) PlaceVisual(index int, m core.Marker) {
	r.logger.Info("Place marker",
		"index", index, "id", m.ID, "position", m.Position.String(),
		"draggable", m.Draggable, "label", m.Label)
}

func (r *LogRenderer) RemoveVisual(index int, id core.MarkerID) {
	r.logger.Info("Remove marker", "index", index, "id", id)
}

func (r *LogRenderer) MoveVisual(index int, m core.Marker) {
	r.logger.Info("Move marker", "index", index, "id", m.ID, "position", m.Position.String())
}

func (r *LogRenderer) PanTo(p core.Position) {
	r.logger.Debug("Pan map", "position", p.String())
}
