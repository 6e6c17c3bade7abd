// Package console renders transfer activity in a terminal and asks the user
// about incoming files.
package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rudransh-shrivastava/peer-drop/internal/transfer"
	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Console is a transfer.Listener that draws a progress bar per session and
// saves completed downloads.
type Console struct {
	out         io.Writer
	saver       Saver
	logger      *logrus.Logger
	interactive bool

	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

func New(out io.Writer, saver Saver, logger *logrus.Logger) *Console {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Console{
		out:         out,
		saver:       saver,
		logger:      logger,
		interactive: isTerminal(out),
		bars:        make(map[string]*progressbar.ProgressBar),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (c *Console) IncomingTransferRequest(req transfer.IncomingRequest) {
	fmt.Fprintf(c.out, "%s wants to send you %s (%s, %s)\n",
		req.PeerID, req.File.Name, humanize.Bytes(uint64(req.File.Size)), req.File.MimeType)
}

func (c *Console) Progress(p transfer.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bar, ok := c.bars[p.SessionID]
	if !ok {
		bar = c.newBar(p)
		c.bars[p.SessionID] = bar
	}
	_ = bar.Set64(p.Bytes)
}

func (c *Console) newBar(p transfer.Progress) *progressbar.ProgressBar {
	verb := "Sending"
	if p.Direction == transfer.DirectionReceive {
		verb = "Receiving"
	}
	if !c.interactive {
		c.logger.Infof("%s %s (%s)", verb, p.File.Name, humanize.Bytes(uint64(p.Total)))
	}
	return progressbar.NewOptions64(p.Total,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetVisibility(c.interactive),
		progressbar.OptionSetDescription(fmt.Sprintf("%s %s", verb, p.File.Name)),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			if c.interactive {
				fmt.Fprintln(c.out)
			}
		}),
	)
}

func (c *Console) dropBar(id string, finished bool) {
	c.mu.Lock()
	bar, ok := c.bars[id]
	delete(c.bars, id)
	c.mu.Unlock()

	if !ok {
		return
	}
	if finished {
		_ = bar.Finish()
	} else {
		_ = bar.Exit()
		if c.interactive {
			fmt.Fprintln(c.out)
		}
	}
}

func (c *Console) Complete(done transfer.Completion) {
	c.dropBar(done.SessionID, true)

	size := humanize.Bytes(uint64(done.File.Size))
	if done.Direction == transfer.DirectionSend {
		fmt.Fprintf(c.out, "Sent %s (%s) to %s\n", done.File.Name, size, done.PeerID)
		return
	}

	path, err := c.saver.Save(done.File.Name, done.Data)
	if err != nil {
		c.logger.Errorf("Failed to save %s: %v", done.File.Name, err)
		return
	}
	fmt.Fprintf(c.out, "Received %s (%s) from %s, saved to %s\n", done.File.Name, size, done.PeerID, path)
}

func (c *Console) Failed(f transfer.Failure) {
	c.dropBar(f.SessionID, false)

	if f.Err != nil {
		fmt.Fprintf(c.out, "Transfer of %s failed: %s (%v)\n", f.File.Name, f.Reason, f.Err)
		return
	}
	fmt.Fprintf(c.out, "Transfer of %s failed: %s\n", f.File.Name, f.Reason)
}

var _ transfer.Listener = (*Console)(nil)
