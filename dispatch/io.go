package dispatch

import (
	"context"
	"encoding/binary"

	"go.uber.org/zap"

	"github.com/wippyai/wasi-executor/errors"
	"github.com/wippyai/wasi-executor/native"
)

const iovecSize = 8

type iovec struct {
	base, len uint32
}

func retryable(status int32) bool {
	return status == native.ErrnoIntr || status == native.ErrnoAgain
}

// accumulate runs a read/write-shaped operation until every byte described
// by its iovec list has been transferred.
//
// Each round re-invokes the operation with the list advanced past the bytes
// already moved, and for positional variants with the offset advanced by the
// same amount. Interrupted and would-block statuses are retried up to the
// configured limit. The loop ends on full transfer, on a successful round
// that moved nothing, or on any other status. The count slot receives the
// total across all rounds.
func (d *Dispatcher) accumulate(ctx context.Context, op *native.Operation, args []uint64) (int32, error) {
	shape := op.IO
	mem := d.mem

	iovs, err := d.readIOVecs(uint32(args[shape.IOVs]), uint32(args[shape.IOVsLen]))
	if err != nil {
		return 0, err
	}
	var want uint64
	for _, v := range iovs {
		want += uint64(v.len)
	}
	countAddr := uint32(args[shape.Count])

	var (
		scratch uint32
		total   uint64
		retries int
		rounds  int
		status  int32
	)
	if len(iovs) > 0 {
		scratch, err = d.alloc.Alloc(uint32(len(iovs))*iovecSize, 4)
		if err != nil {
			return 0, errors.Wrap(errors.PhaseDispatch, errors.KindAllocation, err, "iovec cursor")
		}
		defer d.alloc.Free(scratch, uint32(len(iovs))*iovecSize, 4)
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, errors.Wrap(errors.PhaseNative, errors.KindInvocation, err, op.Name)
		}
		rounds++
		status, err = d.inv.Invoke(ctx, op, args)
		if err != nil {
			return 0, err
		}
		if retryable(status) {
			retries++
			d.metrics.Incr("io.retry")
			if retries > d.maxRetries {
				d.log.Debug("retry limit reached", zap.String("op", op.Name), zap.Int32("status", status))
				break
			}
			continue
		}
		if status != native.ErrnoSuccess {
			break
		}

		n, err := mem.ReadU32(countAddr)
		if err != nil {
			return 0, errors.Prefix(err, "count")
		}
		if n == 0 {
			break
		}
		total += uint64(n)
		if total >= want {
			break
		}

		rest := advance(iovs, total)
		if err := d.writeIOVecs(scratch, rest); err != nil {
			return 0, err
		}
		args[shape.IOVs] = uint64(scratch)
		args[shape.IOVsLen] = uint64(len(rest))
		if shape.Offset >= 0 {
			args[shape.Offset] += uint64(n)
		}
	}

	if total > uint64(^uint32(0)) {
		total = uint64(^uint32(0))
	}
	if err := mem.WriteU32(countAddr, uint32(total)); err != nil {
		return 0, errors.Prefix(err, "count")
	}
	if rounds > 1 {
		d.log.Debug("accumulated partial io",
			zap.String("op", op.Name),
			zap.Int("rounds", rounds),
			zap.Int("retries", retries),
			zap.Uint64("bytes", total),
			zap.Uint64("requested", want))
	}
	return status, nil
}

// advance drops the first done bytes from iovs.
func advance(iovs []iovec, done uint64) []iovec {
	var rest []iovec
	for _, v := range iovs {
		switch {
		case done >= uint64(v.len):
			done -= uint64(v.len)
		case done > 0:
			rest = append(rest, iovec{base: v.base + uint32(done), len: v.len - uint32(done)})
			done = 0
		default:
			rest = append(rest, v)
		}
	}
	return rest
}

func (d *Dispatcher) readIOVecs(addr, n uint32) ([]iovec, error) {
	if uint64(n)*iovecSize > uint64(^uint32(0)) {
		return nil, errors.OutOfBounds(errors.PhaseDispatch, []string{"iovs"}, int(n), int(^uint32(0)/iovecSize))
	}
	raw, err := d.mem.Read(addr, n*iovecSize)
	if err != nil {
		return nil, errors.Prefix(err, "iovs")
	}
	out := make([]iovec, n)
	for i := range out {
		at := i * iovecSize
		out[i] = iovec{
			base: binary.LittleEndian.Uint32(raw[at:]),
			len:  binary.LittleEndian.Uint32(raw[at+4:]),
		}
	}
	return out, nil
}

func (d *Dispatcher) writeIOVecs(addr uint32, iovs []iovec) error {
	for i, v := range iovs {
		at := addr + uint32(i)*iovecSize
		if err := d.mem.WriteU32(at, v.base); err != nil {
			return err
		}
		if err := d.mem.WriteU32(at+4, v.len); err != nil {
			return err
		}
	}
	return nil
}
