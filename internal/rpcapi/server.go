// Package rpcapi binds daemon.Controller to HTTP/JSON using gin, the
// teacher's web framework, repurposed from a multi-user streaming API to a
// single-user local control API. Every logical RPC operation is reached
// through one route, POST /rpc/:family/:verb, dispatched from a small
// registration table -- the transport stays a thin, swappable shell around
// Controller methods.
package rpcapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"cadence/internal/cadenceerr"
	"cadence/internal/daemon"
)

// handlerFunc decodes its request from the gin context, calls a Controller
// method, and returns a JSON-serializable response or an error -- errors
// are mapped to status codes uniformly by writeError, so handlers never touch
// the response writer on the failure path.
type handlerFunc func(ctrl *daemon.Controller, c *gin.Context) (interface{}, error)

// Server is the gin binding over a Controller.
type Server struct {
	engine *gin.Engine
	ctrl   *daemon.Controller
	log    zerolog.Logger
	routes map[string]map[string]handlerFunc
}

// New builds the route table and wires global middleware. Passing
// gin.Mode() through rather than forcing a mode lets cmd/cadenced decide
// release vs debug.
func New(ctrl *daemon.Controller, log zerolog.Logger) *Server {
	engine := gin.New()
	engine.Use(requestLogger(log))
	engine.Use(gin.Recovery())

	s := &Server{engine: engine, ctrl: ctrl, log: log.With().Str("component", "rpcapi").Logger()}
	s.routes = registrationTable()
	s.register()
	return s
}

// Engine exposes the underlying *gin.Engine for cmd/cadenced to wrap in an
// *http.Server (so it controls ListenAndServe/Shutdown itself, per the
// teacher's graceful-shutdown idiom).
func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) register() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		if err := s.ctrl.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	s.engine.POST("/rpc/:family/:verb", func(c *gin.Context) {
		family := c.Param("family")
		verb := c.Param("verb")

		verbs, ok := s.routes[family]
		if !ok {
			c.JSON(http.StatusNotFound, errorBody(cadenceerr.NotFound("unknown RPC family "+family)))
			return
		}
		handler, ok := verbs[verb]
		if !ok {
			c.JSON(http.StatusNotFound, errorBody(cadenceerr.NotFound("unknown RPC verb "+family+"."+verb)))
			return
		}

		result, err := handler(s.ctrl, c)
		if err != nil {
			s.writeError(c, family, verb, err)
			return
		}
		if result == nil {
			c.JSON(http.StatusOK, gin.H{})
			return
		}
		c.JSON(http.StatusOK, result)
	})
}

func (s *Server) writeError(c *gin.Context, family, verb string, err error) {
	cerr, ok := cadenceerr.As(err)
	if !ok {
		cerr = cadenceerr.Internal(err)
	}
	s.log.Error().Str("family", family).Str("verb", verb).Str("kind", string(cerr.Kind)).Msg("rpc call failed")
	c.JSON(statusForKind(cerr.Kind), errorBody(cerr))
}

func errorBody(err *cadenceerr.Error) gin.H {
	body := gin.H{"kind": string(err.Kind), "error": err.Diagnostic}
	if err.JobKind != "" {
		body["job"] = err.JobKind
	}
	return body
}

func statusForKind(kind cadenceerr.Kind) int {
	switch kind {
	case cadenceerr.KindNotFound:
		return http.StatusNotFound
	case cadenceerr.KindAlreadyExists:
		return http.StatusConflict
	case cadenceerr.KindInvalidArgument:
		return http.StatusBadRequest
	case cadenceerr.KindAlreadyInProgress:
		return http.StatusConflict
	case cadenceerr.KindFeatureDisabled:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// requestLogger mirrors the teacher's middleware.Logger in spirit (one
// structured line per request) but emits via zerolog instead of bare
// log.Printf, per the ambient-stack logging upgrade.
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Msg("rpc request")
	}
}
