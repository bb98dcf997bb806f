package update

import (
	"fmt"
	"strings"
	"time"

	"github.com/ouro-sh/ouro/internal/remote"
)

const systemPrompt = `You are rewriting a self-updating program. Return only the complete ` +
	`rewritten program text, with no commentary and no code fences. The rewrite must keep ` +
	`every capability of the original: reading its own program file, requesting a rewrite ` +
	`from the remote service, validating the result, replacing the file atomically with a ` +
	`backup, and restarting itself.`

const userPromptTemplate = `Improve the following program. Generation token: %s.

Hard requirements, restated so they survive the rewrite:
- preserve the read -> call -> write -> restart loop
- keep every integrity marker intact: %s
- keep the API key sourced from the environment, never inline

Current program text follows.

%s`

// BuildRequest embeds the current program text in the upgrade prompt. The
// generation token is a monotonically increasing timestamp so no two requests
// are byte-identical.
func BuildRequest(program string, markerNames []string, now time.Time) remote.Request {
	return remote.Request{
		System: systemPrompt,
		User: fmt.Sprintf(userPromptTemplate,
			now.UTC().Format(time.RFC3339Nano),
			strings.Join(markerNames, ", "),
			program),
	}
}
