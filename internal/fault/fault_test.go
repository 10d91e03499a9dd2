package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestKindOfWrapped(t *testing.T) {
	c := qt.New(t)

	err := fmt.Errorf("failed to send: %w", New(KindTransfer, "send", errors.New("boom")))
	c.Assert(KindOf(err), qt.Equals, KindTransfer)
	c.Assert(Is(err, KindTransfer), qt.IsTrue)
	c.Assert(IsFatal(err), qt.IsFalse)
	c.Assert(err, qt.ErrorMatches, `failed to send: TRANSFER: send: boom`)
}

func TestKindOfContextErrors(t *testing.T) {
	c := qt.New(t)

	c.Assert(KindOf(context.DeadlineExceeded), qt.Equals, KindTimeout)
	c.Assert(KindOf(fmt.Errorf("x: %w", context.Canceled)), qt.Equals, KindCanceled)
	c.Assert(KindOf(errors.New("plain")), qt.Equals, Kind(""))
	c.Assert(KindOf(nil), qt.Equals, Kind(""))
}

func TestFatal(t *testing.T) {
	c := qt.New(t)

	err := fmt.Errorf("dial: %w", NewFatal(KindTransfer, "auth", errors.New("denied")))
	c.Assert(IsFatal(err), qt.IsTrue)
}

func TestFromContext(t *testing.T) {
	c := qt.New(t)

	c.Assert(FromContext(context.Background(), "op"), qt.IsNil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Assert(KindOf(FromContext(ctx, "op")), qt.Equals, KindCanceled)

	ctx, cancel = context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()
	c.Assert(KindOf(FromContext(ctx, "op")), qt.Equals, KindTimeout)
}
