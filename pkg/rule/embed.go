package rule

import "embed"

// builtinRulesFS holds the rules shipped with the binary.
//
//go:embed rules/*.yml
var builtinRulesFS embed.FS
