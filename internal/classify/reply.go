package classify

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackzampolin/semtag/internal/prompts/refine"
	"github.com/jackzampolin/semtag/internal/providers"
)

var (
	// ErrUnparseable marks a reply that does not follow the output contract.
	ErrUnparseable = errors.New("unparseable reply")

	// ErrCallTimeout marks an oracle call that exceeded its deadline.
	ErrCallTimeout = errors.New("classification call timed out")
)

// Proposal is one proposed code from the oracle.
type Proposal struct {
	SurfaceForm  string  `json:"surfaceForm"`
	ProposedCode string  `json:"proposedCode"`
	Confidence   float64 `json:"confidence"`
}

// Reply is the outcome of one oracle call: either Proposals or, when the
// reply could not be used, Unparseable with the reason.
type Reply struct {
	Proposals   []Proposal
	Unparseable error
}

// OK reports whether the reply carries usable proposals.
func (r Reply) OK() bool {
	return r.Unparseable == nil
}

// ParseReply turns raw model output into a Reply. Markdown code fences are
// tolerated; anything but an array of well-formed proposals is unparseable.
func ParseReply(content string) Reply {
	raw, err := providers.ParseJSON(content)
	if err != nil {
		return Reply{Unparseable: fmt.Errorf("%w: %v", ErrUnparseable, err)}
	}
	if err := refine.ReplySchema.Validate(raw); err != nil {
		return Reply{Unparseable: fmt.Errorf("%w: %v", ErrUnparseable, err)}
	}
	var proposals []Proposal
	if err := json.Unmarshal(raw, &proposals); err != nil {
		return Reply{Unparseable: fmt.Errorf("%w: %v", ErrUnparseable, err)}
	}
	return Reply{Proposals: proposals}
}
