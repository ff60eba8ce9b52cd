package native

import (
	"github.com/tetratelabs/wazero/api"
)

// ModuleName is the import module of the preview1 host functions.
const ModuleName = "wasi_snapshot_preview1"

// Preview1 errno values the executor treats specially.
const (
	ErrnoSuccess int32 = 0
	ErrnoAgain   int32 = 6
	ErrnoIntr    int32 = 27
)

// IOShape locates the slots of a read/write-shaped operation: the iovec
// array, its length, the optional file offset and the out-pointer that
// receives the transferred byte count. Offset is -1 when the operation has
// no offset slot.
type IOShape struct {
	IOVs    int
	IOVsLen int
	Offset  int
	Count   int
}

// Operation is one entry of the operation table.
type Operation struct {
	IO      *IOShape
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	ID      uint32
}

// Exits reports whether the operation returns no status.
func (o *Operation) Exits() bool {
	return len(o.Results) == 0
}

// Catalog is an immutable operation table indexed by id.
type Catalog struct {
	byName map[string]uint32
	ops    []Operation
}

// NewCatalog numbers ops in order, starting at 0.
func NewCatalog(ops []Operation) *Catalog {
	c := &Catalog{ops: make([]Operation, len(ops)), byName: make(map[string]uint32, len(ops))}
	for i, op := range ops {
		op.ID = uint32(i)
		c.ops[i] = op
		c.byName[op.Name] = op.ID
	}
	return c
}

// Lookup returns the operation with the given id.
func (c *Catalog) Lookup(id uint32) (*Operation, bool) {
	if int(id) >= len(c.ops) {
		return nil, false
	}
	return &c.ops[id], true
}

// ByName returns the operation with the given name.
func (c *Catalog) ByName(name string) (*Operation, bool) {
	id, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return &c.ops[id], true
}

// Operations returns the table in id order.
func (c *Catalog) Operations() []Operation {
	out := make([]Operation, len(c.ops))
	copy(out, c.ops)
	return out
}

// Len returns the number of operations.
func (c *Catalog) Len() int { return len(c.ops) }

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64

	errno = []api.ValueType{i32}
)

func op(name string, params ...api.ValueType) Operation {
	return Operation{Name: name, Params: params, Results: errno}
}

func ioOp(name string, shape IOShape, params ...api.ValueType) Operation {
	o := op(name, params...)
	o.IO = &shape
	return o
}

var preview1 = NewCatalog([]Operation{
	op("args_get", i32, i32),
	op("args_sizes_get", i32, i32),
	op("environ_get", i32, i32),
	op("environ_sizes_get", i32, i32),
	op("clock_res_get", i32, i32),
	op("clock_time_get", i32, i64, i32),
	op("fd_advise", i32, i64, i64, i32),
	op("fd_allocate", i32, i64, i64),
	op("fd_close", i32),
	op("fd_datasync", i32),
	op("fd_fdstat_get", i32, i32),
	op("fd_fdstat_set_flags", i32, i32),
	op("fd_fdstat_set_rights", i32, i64, i64),
	op("fd_filestat_get", i32, i32),
	op("fd_filestat_set_size", i32, i64),
	op("fd_filestat_set_times", i32, i64, i64, i32),
	ioOp("fd_pread", IOShape{IOVs: 1, IOVsLen: 2, Offset: 3, Count: 4}, i32, i32, i32, i64, i32),
	op("fd_prestat_get", i32, i32),
	op("fd_prestat_dir_name", i32, i32, i32),
	ioOp("fd_pwrite", IOShape{IOVs: 1, IOVsLen: 2, Offset: 3, Count: 4}, i32, i32, i32, i64, i32),
	ioOp("fd_read", IOShape{IOVs: 1, IOVsLen: 2, Offset: -1, Count: 3}, i32, i32, i32, i32),
	op("fd_readdir", i32, i32, i32, i64, i32),
	op("fd_renumber", i32, i32),
	op("fd_seek", i32, i64, i32, i32),
	op("fd_sync", i32),
	op("fd_tell", i32, i32),
	ioOp("fd_write", IOShape{IOVs: 1, IOVsLen: 2, Offset: -1, Count: 3}, i32, i32, i32, i32),
	op("path_create_directory", i32, i32, i32),
	op("path_filestat_get", i32, i32, i32, i32, i32),
	op("path_filestat_set_times", i32, i32, i32, i32, i64, i64, i32),
	op("path_link", i32, i32, i32, i32, i32, i32, i32),
	op("path_open", i32, i32, i32, i32, i32, i64, i64, i32, i32),
	op("path_readlink", i32, i32, i32, i32, i32, i32),
	op("path_remove_directory", i32, i32, i32),
	op("path_rename", i32, i32, i32, i32, i32, i32),
	op("path_symlink", i32, i32, i32, i32, i32),
	op("path_unlink_file", i32, i32, i32),
	op("poll_oneoff", i32, i32, i32, i32),
	{Name: "proc_exit", Params: []api.ValueType{i32}},
	op("proc_raise", i32),
	op("sched_yield"),
	op("random_get", i32, i32),
	op("sock_accept", i32, i32, i32),
	op("sock_recv", i32, i32, i32, i32, i32, i32),
	op("sock_send", i32, i32, i32, i32, i32),
	op("sock_shutdown", i32, i32),
})

// Preview1 returns the wasi_snapshot_preview1 operation table. Ids follow
// the order of the functions in the preview1 witx, starting at 0.
func Preview1() *Catalog {
	return preview1
}

// ValueTypeName returns "i32" or "i64".
func ValueTypeName(t api.ValueType) string {
	return api.ValueTypeName(t)
}
