package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-kaio"
	"github.com/behrlich/go-kaio/internal/logging"
	"github.com/behrlich/go-kaio/reactor"
)

func main() {
	var (
		depth     = flag.Int("depth", 8, "Number of reads kept in flight")
		blockStr  = flag.String("block", fmt.Sprintf("%dK", kaio.DefaultReadSize/1024), "Read size (e.g., 4K, 128K, 1M)")
		direct    = flag.Bool("direct", false, "Open with O_DIRECT (block size must be a multiple of 4K)")
		engineStr = flag.String("engine", "native", "Kernel queue: native or io_uring")
		verbose   = flag.Bool("v", false, "Verbose output")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] <file|device>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	block, err := parseSize(*blockStr)
	if err != nil || block <= 0 {
		logger.Error("invalid block size", "block", *blockStr, "error", err)
		os.Exit(2)
	}
	if *direct && block%kaio.DirectIOAlignment != 0 {
		logger.Error("block size must be aligned for O_DIRECT", "block", block, "alignment", kaio.DirectIOAlignment)
		os.Exit(2)
	}
	engine, err := kaio.ParseEngine(*engineStr)
	if err != nil {
		logger.Error("invalid engine", "error", err)
		os.Exit(2)
	}

	path := flag.Arg(0)
	flags := os.O_RDONLY
	if *direct {
		flags |= unix.O_DIRECT
	}
	f, err := os.OpenFile(path, flags, 0)
	if err != nil {
		logger.Error("failed to open input", "path", path, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		logger.Error("failed to size input", "path", path, "error", err)
		os.Exit(1)
	}

	loop, err := reactor.New()
	if err != nil {
		logger.Error("failed to create reactor", "error", err)
		os.Exit(1)
	}
	defer loop.Close()

	opts := kaio.DefaultOptions()
	opts.Engine = engine
	q, err := kaio.Create(loop, *depth, opts)
	if err != nil {
		logger.Error("failed to create queue", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := &copier{
		q:     q,
		fd:    int(f.Fd()),
		size:  size,
		block: int(block),
		out:   os.Stdout,
		ready: make(map[int64][]byte),
		log:   logger,
	}

	start := time.Now()
	c.fill()
	for !c.done() && ctx.Err() == nil {
		if _, err := loop.Poll(100 * time.Millisecond); err != nil {
			c.fail(err)
		}
	}

	// Let outstanding reads land before tearing the queue down
	for q.InFlight() > 0 {
		if _, err := loop.Poll(100 * time.Millisecond); err != nil {
			logger.Error("poll failed while draining", "error", err)
			break
		}
	}
	if err := q.Close(); err != nil {
		logger.Error("failed to close queue", "error", err)
	}

	snap := q.Metrics().Snapshot()
	logger.Info("copy finished",
		"bytes", c.written,
		"elapsed", time.Since(start).String(),
		"reads", snap.Completions,
		"avg_latency_us", snap.AvgLatencyNs/1000,
		"max_in_flight", snap.MaxInFlight)

	if ctx.Err() != nil {
		os.Exit(130)
	}
	if c.err != nil {
		logger.Error("copy failed", "error", c.err)
		os.Exit(1)
	}
}

// copier keeps the queue full and writes completed blocks to out in order
type copier struct {
	q     *kaio.Queue
	fd    int
	size  int64
	block int
	out   io.Writer
	log   *logging.Logger

	next    int64            // next offset to submit
	flushed int64            // next offset to write
	ready   map[int64][]byte // completed blocks waiting for earlier ones
	written int64
	err     error
}

func (c *copier) done() bool {
	return c.err != nil || c.flushed >= c.size
}

func (c *copier) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// chunk is one block read, passed through the queue as user data
type chunk struct {
	off int64
	buf []byte
}

// fill submits reads until the queue is full or the input is exhausted
func (c *copier) fill() {
	for c.err == nil && c.next < c.size && c.q.InFlight() < c.q.Cap() {
		ch := &chunk{off: c.next, buf: kaio.GetBuffer(c.block)}
		if _, err := c.q.SubmitRead(c.complete, c.fd, ch.off, ch.buf, ch); err != nil {
			kaio.PutBuffer(ch.buf)
			if kaio.IsCode(err, kaio.ErrCodeQueueFull) {
				return
			}
			c.fail(err)
			return
		}
		c.next += int64(c.block)
	}
}

func (c *copier) complete(result int64, userData any) {
	ch := userData.(*chunk)
	if result < 0 {
		kaio.PutBuffer(ch.buf)
		c.fail(fmt.Errorf("read at offset %d: %w", ch.off, syscall.Errno(-result)))
		return
	}
	c.log.Debug("read complete", "offset", ch.off, "bytes", result)

	// A short read marks the end of the input
	if end := ch.off + result; int(result) < len(ch.buf) && end < c.size {
		c.size = end
	}

	c.ready[ch.off] = ch.buf[:result]
	c.flush()
	c.fill()
}

// flush writes every block that is contiguous with what has been written
func (c *copier) flush() {
	for {
		buf, ok := c.ready[c.flushed]
		if !ok {
			return
		}
		delete(c.ready, c.flushed)
		if c.err == nil {
			n, err := c.out.Write(buf)
			c.written += int64(n)
			if err != nil {
				c.fail(err)
			}
		}
		c.flushed += int64(len(buf))
		kaio.PutBuffer(buf)
		if len(buf) == 0 {
			return
		}
	}
}

// parseSize parses a size string like "4K", "128K", "1M"
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(s)

	var multiplier int64 = 1
	var numStr string

	if strings.HasSuffix(s, "K") {
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "K")
	} else if strings.HasSuffix(s, "M") {
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "M")
	} else {
		numStr = s
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}

	return num * multiplier, nil
}
