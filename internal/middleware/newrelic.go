package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicActorMiddleware annotates the nrgin transaction with the caller
// and request id. It is a no-op when New Relic is disabled.
func NewRelicActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		txn := nrgin.Transaction(c)
		if txn == nil {
			c.Next()
			return
		}

		if id := RequestIDFrom(c); id != "" {
			txn.AddAttribute("request_id", id)
		}
		if actor, ok := ActorFrom(c); ok {
			txn.AddAttribute("actor_id", actor.Identity)
			txn.AddAttribute("actor_role", string(actor.Role))
		}

		c.Next()

		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
