package types

import "fmt"

// A CPU is a Mach-O cpu type.
type CPU uint32

const (
	cpuArchMask = 0xff000000 // mask for architecture bits
	cpuArch64   = 0x01000000 // 64 bit ABI
	cpuArch6432 = 0x02000000 // ABI for 64-bit hardware with 32-bit types
)

const (
	CPU386     CPU = 7
	CPUAmd64   CPU = CPU386 | cpuArch64
	CPUArm     CPU = 12
	CPUArm64   CPU = CPUArm | cpuArch64
	CPUArm6432 CPU = CPUArm | cpuArch6432
	CPUPpc     CPU = 18
	CPUPpc64   CPU = CPUPpc | cpuArch64
)

// Family returns the cpu type with the ABI bits masked off.
func (c CPU) Family() CPU { return c &^ cpuArchMask }

// Is64bit reports whether the cpu type carries the 64-bit ABI bit.
func (c CPU) Is64bit() bool { return c&cpuArch64 != 0 }

var cpuStrings = []IntName{
	{uint32(CPU386), "i386"},
	{uint32(CPUAmd64), "x86_64"},
	{uint32(CPUArm), "ARM"},
	{uint32(CPUArm64), "ARM64"},
	{uint32(CPUPpc), "PowerPC"},
	{uint32(CPUPpc64), "PowerPC 64"},
}

func (c CPU) String() string   { return StringName(uint32(c), cpuStrings, false) }
func (c CPU) GoString() string { return StringName(uint32(c), cpuStrings, true) }

type CPUSubtype uint32

// X86 subtypes
const (
	CPUSubtypeX86All   CPUSubtype = 3
	CPUSubtypeX8664All CPUSubtype = 3
	CPUSubtypeX8664H   CPUSubtype = 8
)

// ARM subtypes
const (
	CPUSubtypeArmAll CPUSubtype = 0
	CPUSubtypeArmV6  CPUSubtype = 6
	CPUSubtypeArmV7  CPUSubtype = 9
	CPUSubtypeArmV7S CPUSubtype = 11
	CPUSubtypeArmV7K CPUSubtype = 12
)

// ARM64 subtypes
const (
	CPUSubtypeArm64All CPUSubtype = 0
	CPUSubtypeArm64V8  CPUSubtype = 1
	CPUSubtypeArm64E   CPUSubtype = 2
)

// PowerPC subtypes
const (
	CPUSubtypePpcAll CPUSubtype = 0
)

// Capability bits carried in the high byte of cpu_subtype.
const (
	CpuSubtypeFeatureMask CPUSubtype = 0xff000000
	CpuSubtypeMask                   = CPUSubtype(^CpuSubtypeFeatureMask)
	CpuSubtypeLib64                  = 0x80000000
)

// Masked returns the subtype with the capability bits cleared.
func (st CPUSubtype) Masked() CPUSubtype { return st & CpuSubtypeMask }

var cpuSubtypeX86Strings = []IntName{
	{uint32(CPUSubtypeX8664All), "x86_64"},
	{uint32(CPUSubtypeX8664H), "x86_64h"},
}
var cpuSubtypeArmStrings = []IntName{
	{uint32(CPUSubtypeArmAll), "arm"},
	{uint32(CPUSubtypeArmV6), "armv6"},
	{uint32(CPUSubtypeArmV7), "armv7"},
	{uint32(CPUSubtypeArmV7S), "armv7s"},
	{uint32(CPUSubtypeArmV7K), "armv7k"},
}
var cpuSubtypeArm64Strings = []IntName{
	{uint32(CPUSubtypeArm64All), "arm64"},
	{uint32(CPUSubtypeArm64V8), "arm64v8"},
	{uint32(CPUSubtypeArm64E), "arm64e"},
}

func (st CPUSubtype) String(cpu CPU) string {
	switch cpu {
	case CPUAmd64:
		return StringName(uint32(st.Masked()), cpuSubtypeX86Strings, false)
	case CPUArm:
		return StringName(uint32(st.Masked()), cpuSubtypeArmStrings, false)
	case CPUArm64:
		return StringName(uint32(st.Masked()), cpuSubtypeArm64Strings, false)
	}
	return fmt.Sprintf("%d", uint32(st.Masked()))
}

// An Arch names one (cputype, cpusubtype) pair.
type Arch struct {
	CPU    CPU
	SubCPU CPUSubtype
}

// Uses64BitABI reports whether the architecture family carries the 64-bit ABI bit.
func (a Arch) Uses64BitABI() bool { return a.CPU.Is64bit() }

// Matches compares two architectures ignoring subtype capability bits.
func (a Arch) Matches(o Arch) bool {
	return a.CPU == o.CPU && a.SubCPU.Masked() == o.SubCPU.Masked()
}

func (a Arch) String() string {
	if name, ok := archName(a); ok {
		return name
	}
	return fmt.Sprintf("%s/%s", a.CPU, a.SubCPU.String(a.CPU))
}

// The command-line architecture vocabulary.
var archNames = []struct {
	Name string
	Arch Arch
}{
	{"ppc", Arch{CPUPpc, CPUSubtypePpcAll}},
	{"ppc64", Arch{CPUPpc64, CPUSubtypePpcAll}},
	{"i386", Arch{CPU386, CPUSubtypeX86All}},
	{"x86_64", Arch{CPUAmd64, CPUSubtypeX8664All}},
	{"x86_64h", Arch{CPUAmd64, CPUSubtypeX8664H}},
	{"armv6", Arch{CPUArm, CPUSubtypeArmV6}},
	{"armv7", Arch{CPUArm, CPUSubtypeArmV7}},
	{"armv7s", Arch{CPUArm, CPUSubtypeArmV7S}},
	{"arm64", Arch{CPUArm64, CPUSubtypeArm64All}},
	{"arm64e", Arch{CPUArm64, CPUSubtypeArm64E}},
}

// ArchFromName resolves a command-line architecture name.
func ArchFromName(name string) (Arch, bool) {
	for _, an := range archNames {
		if an.Name == name {
			return an.Arch, true
		}
	}
	return Arch{}, false
}

func archName(a Arch) (string, bool) {
	for _, an := range archNames {
		if an.Arch.Matches(a) {
			return an.Name, true
		}
	}
	return "", false
}
