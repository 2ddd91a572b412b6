package cpu

import (
	"github.com/klauspost/cpuid/v2"
)

// Features describes the host CPU as seen by the kernels.
type Features struct {
	Brand         string   `json:"brand"`
	PhysicalCores int      `json:"physical_cores"`
	LogicalCores  int      `json:"logical_cores"`
	Flags         []string `json:"flags"`
}

// reportedFlags are the SIMD extensions worth surfacing for matmul/conv throughput.
var reportedFlags = []struct {
	id   cpuid.FeatureID
	name string
}{
	{cpuid.SSE42, "sse4.2"},
	{cpuid.AVX, "avx"},
	{cpuid.AVX2, "avx2"},
	{cpuid.FMA3, "fma3"},
	{cpuid.AVX512F, "avx512f"},
	{cpuid.ASIMD, "asimd"},
}

// DetectFeatures reads the host CPU description from cpuid.
func DetectFeatures() Features {
	f := Features{
		Brand:         cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		Flags:         []string{},
	}
	for _, rf := range reportedFlags {
		if cpuid.CPU.Supports(rf.id) {
			f.Flags = append(f.Flags, rf.name)
		}
	}
	return f
}

// Features returns the host CPU description.
func (cpu *CPUBackend) Features() Features {
	return DetectFeatures()
}
