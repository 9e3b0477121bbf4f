package security

import (
	"github.com/Pit-CL/mcp-multilang-sandbox/internal/langtype"
)

// Level names a named bundle of hardening-descriptor values.
type Level string

const (
	LevelStrict     Level = "strict"
	LevelStandard   Level = "standard"
	LevelPermissive Level = "permissive"
)

// Ulimits bounds the per-container resource ceilings that ulimit enforces.
type Ulimits struct {
	OpenFiles int
	UserProcs int
	CoreDumps int // always 0; kept explicit so it shows up in the descriptor
}

// SyscallFilter names the seccomp policy shipped with the hardening
// descriptor: a documented base allowlist plus per-language extras, and an
// explicit denylist of syscalls that are always killed regardless of
// language.
type SyscallFilter struct {
	BaseAllow  []string
	ExtraAllow []string // per-language additions (e.g. SysV IPC for interpreters)
	Deny       []string
}

// baseAllowedSyscalls is the documented minimum syscall surface every
// sandboxed process needs to run a language interpreter or compiled binary.
var baseAllowedSyscalls = []string{
	"read", "write", "open", "openat", "close", "stat", "fstat", "lstat",
	"mmap", "mprotect", "munmap", "brk", "rt_sigaction", "rt_sigprocmask",
	"rt_sigreturn", "ioctl", "access", "pipe", "pipe2", "select", "dup",
	"dup2", "dup3", "getpid", "getuid", "getgid", "geteuid", "getegid",
	"exit", "exit_group", "wait4", "clone", "execve", "fcntl", "getcwd",
	"chdir", "mkdir", "rmdir", "unlink", "unlinkat", "rename", "readlink",
	"getdents", "getdents64", "sched_yield", "nanosleep", "clock_gettime",
	"gettimeofday", "futex", "set_robust_list", "set_tid_address",
	"arch_prctl", "prlimit64", "sysinfo", "uname", "getrandom", "statx",
}

// alwaysBlockedSyscalls are killed unconditionally: namespace/mount
// manipulation, tracing, module load/unload, kexec, reboot, BPF, perf,
// keyctl, userfaultfd, and filesystem-handle escapes.
var alwaysBlockedSyscalls = []string{
	"unshare", "setns", "mount", "umount", "umount2", "pivot_root",
	"ptrace", "process_vm_readv", "process_vm_writev",
	"init_module", "finit_module", "delete_module",
	"kexec_load", "kexec_file_load", "reboot",
	"bpf", "perf_event_open", "keyctl", "add_key", "request_key",
	"userfaultfd", "open_by_handle_at", "name_to_handle_at",
	"syslog", "acct", "swapon", "swapoff", "iopl", "ioperm",
}

// extraSyscallsByLanguage names SysV IPC syscalls needed by interpreters
// that use shared memory (notably the ML-Python variant's numeric stack).
var extraSyscallsByLanguage = map[langtype.Language][]string{
	langtype.Python: {"shmget", "shmat", "shmdt", "shmctl", "semget", "semop", "semctl", "msgget", "msgsnd", "msgrcv"},
}

// CapabilitySet lists Linux capabilities to drop / re-add.
type CapabilitySet struct {
	DropAll bool
	ReAdd   []string // only meaningful when DropAll is true
}

// Descriptor is the full set of container-create hardening fields consumed
// by the Engine Adapter.
type Descriptor struct {
	Level              Level
	MemoryMB           int
	CPUQuota           float64 // fraction of one core, e.g. 0.5
	PIDLimit           int
	Syscalls           SyscallFilter
	Capabilities       CapabilitySet
	NoNewPrivileges    bool
	Ulimits            Ulimits
	RunAsUID           int
	RunAsGID           int
	ReadOnlyRootFS     bool
	TmpfsWritablePaths []string // used only when ReadOnlyRootFS is true
}

// levelDefaults is the built-in bundle used when no YAML override file is
// configured or loaded.
var levelDefaults = map[Level]Descriptor{
	LevelStrict: {
		Level:           LevelStrict,
		MemoryMB:        256,
		CPUQuota:        0.5,
		PIDLimit:        64,
		Capabilities:    CapabilitySet{DropAll: true},
		NoNewPrivileges: true,
		Ulimits:         Ulimits{OpenFiles: 256, UserProcs: 64, CoreDumps: 0},
		RunAsUID:        1000,
		RunAsGID:        1000,
		ReadOnlyRootFS:  true,
		TmpfsWritablePaths: []string{WorkspaceRoot, "/tmp"},
	},
	LevelStandard: {
		Level:           LevelStandard,
		MemoryMB:        512,
		CPUQuota:        1.0,
		PIDLimit:        128,
		Capabilities:    CapabilitySet{DropAll: true, ReAdd: []string{"CHOWN", "SETUID", "SETGID"}},
		NoNewPrivileges: true,
		Ulimits:         Ulimits{OpenFiles: 1024, UserProcs: 128, CoreDumps: 0},
		RunAsUID:        1000,
		RunAsGID:        1000,
		ReadOnlyRootFS:  false,
	},
	LevelPermissive: {
		Level:           LevelPermissive,
		MemoryMB:        2048,
		CPUQuota:        2.0,
		PIDLimit:        512,
		Capabilities:    CapabilitySet{DropAll: true, ReAdd: []string{"CHOWN", "SETUID", "SETGID", "DAC_OVERRIDE"}},
		NoNewPrivileges: true,
		Ulimits:         Ulimits{OpenFiles: 4096, UserProcs: 512, CoreDumps: 0},
		RunAsUID:        1000,
		RunAsGID:        1000,
		ReadOnlyRootFS:  false,
	},
}

// BuildDescriptor assembles the hardening descriptor for a (level,
// language) pair, layering the per-language syscall extras and the always-
// blocked denylist on top of the level's base resource bundle.
func BuildDescriptor(level Level, lang langtype.Language, overrides map[Level]Descriptor) Descriptor {
	base, ok := overrides[level]
	if !ok {
		base, ok = levelDefaults[level]
		if !ok {
			base = levelDefaults[LevelStandard]
		}
	}

	base.Syscalls = SyscallFilter{
		BaseAllow:  append([]string{}, baseAllowedSyscalls...),
		ExtraAllow: append([]string{}, extraSyscallsByLanguage[lang]...),
		Deny:       append([]string{}, alwaysBlockedSyscalls...),
	}

	return base
}
