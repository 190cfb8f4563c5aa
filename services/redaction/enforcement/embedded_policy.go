// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

/*
This file bridges the build system and the runtime masker. It uses the Go
embed package to bake sensitive_patterns.yaml directly into the compiled
binary, so the redaction rules are immutable at runtime and travel with the
executable.
*/

package enforcement

import (
	_ "embed"
)

// SensitivePatterns holds the raw byte content of 'sensitive_patterns.yaml'.
//
// Populated at compile time via the Go 'embed' directive. Baking the YAML
// into the binary guarantees the redaction rules cannot be tampered with on
// the host filesystem without recompiling the application. The claimsctl CLI
// exposes a checksum of these bytes for integrity verification.
//
//go:embed sensitive_patterns.yaml
var SensitivePatterns []byte
