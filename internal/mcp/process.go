// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// stdoutBacklog bounds the lines buffered between reads. When it is full
// the reader blocks, and the server blocks on its next write, until a call
// drains it or the process is closed.
const stdoutBacklog = 256

// exitDrainGrace bounds how long an exited process keeps its stdout open for
// a call that is still reading its final lines.
const exitDrainGrace = 2 * time.Second

// maxLineSize bounds a single stdout line.
const maxLineSize = 16 * 1024 * 1024

// process is one running child. It is owned by a single Client.
type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	spawn int

	stdoutR *os.File
	stderrR *os.File

	// lines carries stdout lines and is closed at EOF. readErr is set before
	// the close.
	lines   chan []byte
	readErr error

	// readDone is closed when readStdout returns. closed is closed by
	// shutdown and unblocks a reader waiting on a full lines.
	readDone chan struct{}
	closed   chan struct{}

	// done is closed once the process has exited and been reaped.
	done    chan struct{}
	waitErr error

	// stderrDone is closed when stderr reaches EOF.
	stderrDone chan struct{}

	startedAt time.Time
	closeOnce sync.Once
	logger    *slog.Logger
}

// spawnProcess starts cfg.Command with piped stdio. The caller owns the
// returned process and must call terminate.
func spawnProcess(cfg ServerConfig, env []string, spawn int, stderr *RingBuffer, logger *slog.Logger) (*process, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}

	// os.Pipe rather than StdoutPipe so that Wait never closes the read ends
	// while a reader is still draining them.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		stderrR.Close()
		stderrW.Close()
		return nil, err
	}
	stdoutW.Close()
	stderrW.Close()

	p := &process{
		cmd:        cmd,
		stdin:      stdin,
		spawn:      spawn,
		stdoutR:    stdoutR,
		stderrR:    stderrR,
		lines:      make(chan []byte, stdoutBacklog),
		readDone:   make(chan struct{}),
		closed:     make(chan struct{}),
		done:       make(chan struct{}),
		stderrDone: make(chan struct{}),
		startedAt:  time.Now(),
		logger:     logger,
	}

	go p.readStdout()
	go p.readStderr(stderr)
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

func (p *process) readStdout() {
	defer close(p.readDone)
	defer close(p.lines)

	r := bufio.NewReaderSize(p.stdoutR, 64*1024)
	var pending []byte
	for {
		chunk, err := r.ReadSlice('\n')
		pending = append(pending, chunk...)

		if errors.Is(err, bufio.ErrBufferFull) {
			if len(pending) > maxLineSize {
				p.readErr = fmt.Errorf("stdout line exceeds %d bytes", maxLineSize)
				return
			}
			continue
		}
		if len(pending) > 0 && (err == nil || err == io.EOF) {
			line := bytes.TrimRight(pending, "\r\n")
			select {
			case p.lines <- line:
			case <-p.closed:
				return
			}
		}
		pending = nil
		if err != nil {
			if err != io.EOF && !errors.Is(err, os.ErrClosed) {
				p.readErr = err
			}
			return
		}
	}
}

func (p *process) readStderr(buf *RingBuffer) {
	defer close(p.stderrDone)

	scanner := bufio.NewScanner(p.stderrR)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		buf.Add(LogEntry{Timestamp: time.Now(), Line: line, Spawn: p.spawn})
		p.logger.Debug("tool server stderr", "line", line)
	}
}

// exited reports whether the process has been reaped.
func (p *process) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *process) pid() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// exitStatus describes how the process ended.
func (p *process) exitStatus() string {
	if !p.exited() {
		return "running"
	}
	if p.waitErr == nil {
		return "exit status 0"
	}
	return p.waitErr.Error()
}

// write sends one request line.
func (p *process) write(line []byte) error {
	_, err := p.stdin.Write(line)
	return err
}

// waitStderr gives the stderr reader up to d to finish after an exit.
func (p *process) waitStderr(d time.Duration) {
	select {
	case <-p.stderrDone:
	case <-time.After(d):
	}
}

// retire releases a process that has already exited. Its stdout stays open
// until the reader reaches EOF or grace passes, so a call still reading the
// final response gets it.
func (p *process) retire(grace time.Duration) {
	_ = p.stdin.Close()
	select {
	case <-p.readDone:
	case <-time.After(grace):
	}
	_ = p.terminate(0)
}

// terminate closes stdin, asks the process to exit, and kills it if it is
// still alive after grace. It is safe to call more than once.
func (p *process) terminate(grace time.Duration) error {
	var err error
	p.closeOnce.Do(func() {
		err = p.shutdown(grace)
	})
	return err
}

func (p *process) shutdown(grace time.Duration) error {
	_ = p.stdin.Close()

	if !p.exited() && grace > 0 {
		if sigErr := p.cmd.Process.Signal(syscall.SIGTERM); sigErr == nil {
			select {
			case <-p.done:
			case <-time.After(grace):
			}
		}
	}

	var err error
	if !p.exited() {
		if killErr := p.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			err = fmt.Errorf("killing process %d: %w", p.pid(), killErr)
		}
		<-p.done
	}

	// Grandchildren may still hold the write ends; closing the read ends
	// unblocks the readers either way.
	close(p.closed)
	p.stdoutR.Close()
	p.stderrR.Close()
	return err
}
