package transport

import "net/http"

// ArgPlacement says where a command's arguments go on the HTTP channel.
// The direct channel ignores placement and passes arguments through.
type ArgPlacement int

const (
	// ArgsInBody sends arguments as a JSON request body
	ArgsInBody ArgPlacement = iota
	// ArgsInQuery flattens top-level argument fields into query params
	ArgsInQuery
)

// Route is one entry of the static command lookup table: the HTTP shape
// of a logical command, plus whether the command is read-only and may
// therefore be deduplicated by the dispatcher.
type Route struct {
	Method   string
	Path     string
	Args     ArgPlacement
	ReadOnly bool
}

// routes maps each logical command to its transport shape. Commands
// absent from the table fall back to POST /api/v1/<command> with body
// arguments, and are never treated as read-only.
var routes = map[string]Route{
	"list_projects":  {Method: http.MethodGet, Path: "/api/v1/projects", Args: ArgsInQuery, ReadOnly: true},
	"get_project":    {Method: http.MethodGet, Path: "/api/v1/projects/get", Args: ArgsInQuery, ReadOnly: true},
	"create_project": {Method: http.MethodPost, Path: "/api/v1/projects", Args: ArgsInBody},
	"delete_project": {Method: http.MethodDelete, Path: "/api/v1/projects/delete", Args: ArgsInQuery},

	"list_sessions": {Method: http.MethodGet, Path: "/api/v1/sessions", Args: ArgsInQuery, ReadOnly: true},
	"get_session":   {Method: http.MethodGet, Path: "/api/v1/sessions/get", Args: ArgsInQuery, ReadOnly: true},

	"list_traces":   {Method: http.MethodGet, Path: "/api/v1/traces", Args: ArgsInQuery, ReadOnly: true},
	"get_trace":     {Method: http.MethodGet, Path: "/api/v1/traces/get", Args: ArgsInQuery, ReadOnly: true},
	"search_traces": {Method: http.MethodPost, Path: "/api/v1/traces/search", Args: ArgsInBody, ReadOnly: true},
	"delete_traces": {Method: http.MethodDelete, Path: "/api/v1/traces/delete", Args: ArgsInQuery},

	"get_stats":       {Method: http.MethodGet, Path: "/api/v1/stats", Args: ArgsInQuery, ReadOnly: true},
	"get_percentiles": {Method: http.MethodGet, Path: "/api/v1/stats/percentiles", Args: ArgsInQuery, ReadOnly: true},
	"get_cardinality": {Method: http.MethodGet, Path: "/api/v1/stats/cardinality", Args: ArgsInQuery, ReadOnly: true},
}

// RouteFor returns the HTTP shape for a command, falling back to the
// generic POST /api/v1/<command> convention for unmapped commands.
func RouteFor(command string) Route {
	if r, ok := routes[command]; ok {
		return r
	}
	return Route{
		Method: http.MethodPost,
		Path:   "/api/v1/" + command,
		Args:   ArgsInBody,
	}
}

// ReadOnly reports whether a command is declared read-only/idempotent
// and therefore eligible for in-flight deduplication.
func ReadOnly(command string) bool {
	return RouteFor(command).ReadOnly
}
