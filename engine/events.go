package engine

import "time"

// EventType identifies one engine event. Plugin events arrive over RPC as
// plain strings; internal events are produced by the engine itself.
type EventType string

const (
	// Events sent by the editor plugin.
	EventShow               EventType = "show"
	EventHide               EventType = "hide"
	EventToggle             EventType = "toggle"
	EventRefresh            EventType = "refresh"
	EventYank               EventType = "yank"
	EventSave               EventType = "save"
	EventHistory            EventType = "history"
	EventDiagnosticsChanged EventType = "diagnostics_changed"

	// Internal events.
	EventUpdateTimeout EventType = "update_timeout"
	EventRenderReady   EventType = "render_ready"
	EventRenderError   EventType = "render_error"
)

var pluginEventMap map[string]EventType

func init() {
	pluginEventMap = buildPluginEventMap()
}

func buildPluginEventMap() map[string]EventType {
	pluginEvents := []EventType{
		EventShow,
		EventHide,
		EventToggle,
		EventRefresh,
		EventYank,
		EventSave,
		EventHistory,
		EventDiagnosticsChanged,
	}

	eventMap := make(map[string]EventType, len(pluginEvents))
	for _, eventType := range pluginEvents {
		eventMap[string(eventType)] = eventType
	}
	return eventMap
}

// EventTypeFromString maps an RPC event name to its EventType. Internal
// event names are deliberately absent so the plugin cannot inject them.
func EventTypeFromString(s string) EventType {
	if eventType, exists := pluginEventMap[s]; exists {
		return eventType
	}
	return ""
}

// Event is one unit of work for the event loop. Arg carries the plugin's
// argument (a save path or a history offset); Data carries internal
// payloads.
type Event struct {
	Type EventType
	Arg  string
	Data any
}

// renderResult is the payload of EventRenderReady.
type renderResult struct {
	gen     uint64
	report  string
	action  EventType
	arg     string
	files   int
	count   int
	elapsed time.Duration
}
