package classifier

import "fmt"

type Verdict int

const (
	// Pass hands the frame back to the normal stack.
	Pass Verdict = iota
	// Redirect forwards the frame out of IfIndex.
	Redirect
	// RedirectPeer moves the frame into the peer of IfIndex, which lives in
	// another network namespace.
	RedirectPeer
	// Drop discards the frame.
	Drop
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "TC_ACT_OK"
	case Redirect:
		return "TC_ACT_REDIRECT"
	case RedirectPeer:
		return "TC_ACT_REDIRECT_PEER"
	case Drop:
		return "TC_ACT_SHOT"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// Result is the outcome of one classifier run. IfIndex is only meaningful for
// the redirect verdicts.
type Result struct {
	Verdict Verdict
	IfIndex uint32
}

var (
	PassResult = Result{Verdict: Pass}
	DropResult = Result{Verdict: Drop}
)

func RedirectTo(ifindex uint32) Result {
	return Result{Verdict: Redirect, IfIndex: ifindex}
}

func RedirectPeerTo(ifindex uint32) Result {
	return Result{Verdict: RedirectPeer, IfIndex: ifindex}
}

func (r Result) IsRedirect() bool {
	return r.Verdict == Redirect || r.Verdict == RedirectPeer
}

func (r Result) String() string {
	if r.IsRedirect() {
		return fmt.Sprintf("%s(%d)", r.Verdict, r.IfIndex)
	}
	return r.Verdict.String()
}
