package publisher

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/udp"

	"ringlog/internal/domain"
	"ringlog/internal/platform/diag"
	"ringlog/internal/platform/transfer"
)

// senmlCBORFormat is the IANA CoAP Content-Format ID for
// application/senml+cbor (112), the format coap_opt_add_format tags
// every PUT with in networking.c's _do_block_put.
const senmlCBORFormat = message.MediaType(112)

// Target addresses one remote CoAP resource, mirroring rem_res_t
// (address + port + res_location). It is copied into a Publisher at
// construction and never mutated afterward, the same "publisher owns a
// copy" contract rem_res_cpy gives publ_t.rem_res.
type Target struct {
	// Addr is the CoAP server's host:port, dialed fresh for every send —
	// there is no persistent connection to keep alive across sends, the
	// same as remstr_open/net_send binding and closing a descriptor per
	// call.
	Addr string
	// Path is the remote resource PUT to, mirroring rem_res_t.res_location.
	Path string
}

// Config configures one Publisher.
type Config struct {
	Target Target
	// RetryCount mirrors publ_t.retry_cnt: how many additional attempts
	// _pub_send/_pub_exec_snd_job make after an initial failed send.
	RetryCount int
	// Debug mirrors the debug-level check hexout.c's caller makes before
	// dumping an outgoing payload: when set, every PUT attempt's body is
	// hex-dumped via diag.HexDump before it goes out.
	Debug bool
}

// coapPut performs one CoAP PUT of body to addr/path. Pulled out as a
// function value on Publisher (rather than a free call to udp.Dial
// inline) so tests can substitute a fake transport without a reachable
// CoAP server.
type coapPutFunc func(ctx context.Context, addr, path string, body io.ReadSeeker) error

// dialAndPut is coapPutFunc's real implementation: dial the remote
// resource fresh and PUT the whole body as one CoAP message, mirroring
// remstr_open/net_send binding and closing a descriptor per call rather
// than keeping a connection alive across sends.
func dialAndPut(ctx context.Context, addr, path string, body io.ReadSeeker) error {
	conn, err := udp.Dial(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	resp, err := conn.Put(ctx, path, senmlCBORFormat, body)
	if err != nil {
		return err
	}
	if resp.Code() != codes.Changed && resp.Code() != codes.Created {
		return fmt.Errorf("remote returned %v", resp.Code())
	}
	return nil
}

// Publisher is a transfer.Driver that hands finished packs to a remote
// CoAP resource over UDP, grounded on publisher.c's publ_t / sender_impl
// and networking.c's block-wise PUT.
type Publisher struct {
	transfer.NotImplementedDriver

	disp *dispatcher
	cfg  Config
	put  coapPutFunc

	mu        sync.Mutex
	nbJobsSnd int
	closeCond *sync.Cond
}

// New starts the publisher's send goroutine and returns the ready
// driver, mirroring publisher_init's lazy _pub_init_subsys plus the
// per-driver publ_t allocation.
func New(cfg Config) *Publisher {
	return newWithTransport(cfg, dialAndPut)
}

func newWithTransport(cfg Config, put coapPutFunc) *Publisher {
	p := &Publisher{disp: newDispatcher(), cfg: cfg, put: put}
	p.closeCond = sync.NewCond(&p.mu)
	go p.disp.run()
	return p
}

// doSend PUTs fd's whole content, retrying with exponential backoff up
// to cfg.RetryCount additional times, mirroring _pub_send/
// _pub_exec_snd_job's do/while retry loop with net_send.
func (p *Publisher) doSend(fd transfer.VFile) error {
	attempt := func() error {
		if _, err := fd.Seek(0, io.SeekStart); err != nil {
			return err
		}

		if p.cfg.Debug {
			diag.HexDump(p.cfg.Target.Path, fd.Bytes())
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return p.put(ctx, p.cfg.Target.Addr, p.cfg.Target.Path, fd)
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(p.cfg.RetryCount))
	if err := backoff.Retry(attempt, bo); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransportFail, err)
	}
	return nil
}

// TrySend enqueues job without blocking, mirroring _pub_try_send: the
// in-flight job counter is bumped before the enqueue attempt and rolled
// back if the queue is full, exactly as the original increments
// nb_jobs_snd before msg_try_send and undoes it on refusal.
func (p *Publisher) TrySend(job *transfer.Job) error {
	p.mu.Lock()
	p.nbJobsSnd++
	enqueued := p.disp.tryEnqueue(func() { p.runJob(job) })
	if !enqueued {
		p.nbJobsSnd--
		if p.nbJobsSnd == 0 {
			p.closeCond.Broadcast()
		}
	}
	p.mu.Unlock()

	if !enqueued {
		return domain.ErrWouldBlock
	}
	return nil
}

func (p *Publisher) runJob(job *transfer.Job) {
	err := p.doSend(job.FD)

	p.mu.Lock()
	p.nbJobsSnd--
	if p.nbJobsSnd == 0 {
		p.closeCond.Broadcast()
	}
	p.mu.Unlock()

	if job.Callback != nil {
		job.Callback(job, err)
	}
}

// Send sends job synchronously and blocks until the remote PUT (with its
// retries) completes, mirroring _pub_send. Per the Driver contract, its
// callback is never invoked — the original only ever calls job->cb here
// on the success path, which a plain error return already conveys.
func (p *Publisher) Send(job *transfer.Job) error {
	return p.doSend(job.FD)
}

// Delete waits for every in-flight send to finish before returning,
// mirroring _pub_delete's cond_wait on close_cond, then shuts down the
// send goroutine.
func (p *Publisher) Delete() error {
	p.mu.Lock()
	for p.nbJobsSnd > 0 {
		p.closeCond.Wait()
	}
	p.mu.Unlock()

	close(p.disp.queue)
	return nil
}
