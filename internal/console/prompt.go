package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/rudransh-shrivastava/peer-drop/internal/transfer"
	"github.com/sirupsen/logrus"
)

// Decider settles an incoming transfer. *transfer.Manager implements it.
type Decider interface {
	Accept(id string) error
	Decline(id string) error
}

// Prompter asks the user about each incoming file, one at a time. Requests
// are queued so the session goroutine that raised them never blocks on input.
type Prompter struct {
	in         *bufio.Reader
	out        io.Writer
	autoAccept bool
	logger     *logrus.Logger

	mu      sync.Mutex
	decider Decider

	requests chan transfer.IncomingRequest
}

func NewPrompter(in io.Reader, out io.Writer, autoAccept bool, logger *logrus.Logger) *Prompter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Prompter{
		in:         bufio.NewReader(in),
		out:        out,
		autoAccept: autoAccept,
		logger:     logger,
		requests:   make(chan transfer.IncomingRequest, 16),
	}
}

// Bind sets the decider. The manager needs its listener up front, so the
// prompter is created first and bound afterwards.
func (p *Prompter) Bind(d Decider) {
	p.mu.Lock()
	p.decider = d
	p.mu.Unlock()
}

func (p *Prompter) IncomingTransferRequest(req transfer.IncomingRequest) {
	select {
	case p.requests <- req:
	default:
		p.logger.Warnf("Too many pending requests, declining %s from %s", req.File.Name, req.PeerID)
		p.settle(req, false)
	}
}

func (p *Prompter) Progress(transfer.Progress)   {}
func (p *Prompter) Complete(transfer.Completion) {}
func (p *Prompter) Failed(transfer.Failure)      {}

// Run answers queued requests until ctx is done or input ends. Once input
// ends every later request is declined.
func (p *Prompter) Run(ctx context.Context) error {
	eof := false
	for {
		select {
		case req := <-p.requests:
			if p.autoAccept {
				p.settle(req, true)
				continue
			}
			if eof {
				p.settle(req, false)
				continue
			}

			accept, err := p.ask(req)
			if err != nil {
				eof = true
			}
			p.settle(req, accept)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Prompter) ask(req transfer.IncomingRequest) (bool, error) {
	fmt.Fprintf(p.out, "Accept %s (%s) from %s? [y/N] ",
		req.File.Name, humanize.Bytes(uint64(req.File.Size)), req.PeerID)

	line, err := p.in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(p.out)
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func (p *Prompter) settle(req transfer.IncomingRequest, accept bool) {
	p.mu.Lock()
	d := p.decider
	p.mu.Unlock()
	if d == nil {
		p.logger.Errorf("No decider bound, dropping request %s", req.SessionID)
		return
	}

	var err error
	if accept {
		err = d.Accept(req.SessionID)
	} else {
		err = d.Decline(req.SessionID)
	}
	if err != nil {
		// the session may have timed out or been cancelled while we asked
		p.logger.Debugf("Could not settle %s: %v", req.SessionID, err)
		return
	}
	// a declined session ends without a failure, so it is reported here
	if !accept {
		fmt.Fprintf(p.out, "Declined %s from %s\n", req.File.Name, req.PeerID)
	}
}

var _ transfer.Listener = (*Prompter)(nil)
