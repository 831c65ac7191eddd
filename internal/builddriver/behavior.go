package builddriver

import (
	"github.com/snowdamiz/meshcore/internal/actorsys"
	"github.com/snowdamiz/meshcore/internal/typeck"
)

// checkerBehavior is the actorsys.Behavior the pooled checker actors run.
// Each actor blocks on a plain `receive` with no `after` clause (§4.C) for
// the next checkModuleRequest, runs check_with_imports, and replies on the
// request's own channel, until it's told to stop. Behaviors hold no state
// of their own between messages, so a pool of them is safe to fan a
// level's modules across.
func checkerBehavior(ctx *actorsys.Context) (actorsys.Message, error) {
	isRequest := func(m actorsys.Message) bool {
		_, ok := m.(checkModuleRequest)
		return ok
	}
	isStop := func(m actorsys.Message) bool {
		_, ok := m.(stopChecker)
		return ok
	}

	for {
		msg := ctx.Receive([]actorsys.MatchArm{
			{
				Match: func(m actorsys.Message) bool { return isRequest(m) || isStop(m) },
				Body:  func(m actorsys.Message) actorsys.Message { return m },
			},
		}, 0, nil)

		if _, ok := msg.(stopChecker); ok {
			return nil, nil
		}

		req := msg.(checkModuleRequest)
		result := typeck.CheckWithImports(req.Module, req.Ctx)
		req.Reply <- checkModuleResponse{
			ModuleName: req.Module.Name,
			Result:     result,
		}
	}
}
