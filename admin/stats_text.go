// Package admin implements the built-in admin handlers and the STATS output formats.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package admin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/coreserve/gridd/dispatch"
)

// ToText renders samples as `<quark> <u64>\n` lines sorted by name for
// deterministic output, with `config volume <v>`/`config service_id <s>`
// trailers when those are configured.
func ToText(samples []dispatch.Sample, serviceID, volume string) string {
	sorted := append([]dispatch.Sample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	for _, s := range sorted {
		fmt.Fprintf(&b, "%s %d\n", s.Name, s.Value)
	}
	if volume != "" {
		fmt.Fprintf(&b, "config volume %s\n", volume)
	}
	if serviceID != "" {
		fmt.Fprintf(&b, "config service_id %s\n", serviceID)
	}
	return b.String()
}
