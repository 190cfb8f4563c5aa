// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
This file bridges the build system and the runtime scanner. It uses the Go
embed package to bake threat_patterns.yaml directly into the compiled binary,
so the threat library is immutable at runtime and travels with the executable.
*/

package enforcement

import (
	_ "embed"
)

// ThreatPatterns holds the raw byte content of 'threat_patterns.yaml'.
//
// Populated at compile time via the Go 'embed' directive. Baking the YAML
// into the binary guarantees the adversarial-input rules cannot be swapped
// on the host filesystem without recompiling the application. The claimsctl
// CLI exposes a checksum of these bytes for integrity verification.
//
// Usage:
//
//	// Pass these bytes directly to yaml.Unmarshal
//	err := yaml.Unmarshal(enforcement.ThreatPatterns, &targetStruct)
//
//go:embed threat_patterns.yaml
var ThreatPatterns []byte
