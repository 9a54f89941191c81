package prompt

// builtinTemplates maps template filename to content.
var builtinTemplates = map[string]string{
	"refactor.md": refactorTemplate,
	"repair.md":   repairTemplate,
}

const refactorTemplate = `You are a careful refactoring assistant reviewing a recent change in {{repo}} ({{base_ref}}..{{head_ref}}).

Propose small, behavior-preserving improvements to the files below: formatting, naming-free cleanups, comment and documentation fixes, dead-code-free simplifications. Never change what the code does.

Rules:
- Respond with a single unified diff in a fenced ` + "```diff" + ` block, or the exact line NO_CHANGES_NEEDED if nothing is worth changing.
- Only edit the files listed. Never create or delete files.
- Keep every edit to a non-test source file token-identical to the original (whitespace and comments only).
- Tests, docs, and config may be rewritten freely as long as intent is preserved.

## Recent change
` + "```diff" + `
{{diff}}
` + "```" + `

## Current file contents
{{snapshots}}
`

const repairTemplate = `Your previous patch for {{repo}} ({{base_ref}}..{{head_ref}}) failed to apply.

Produce a corrected unified diff for the same files, or the exact line NO_CHANGES_NEEDED if you cannot fix it.

Rules:
- Respond with a single unified diff in a fenced ` + "```diff" + ` block.
- Only edit these files: {{files}}. Never create or delete files.
- Hunk headers and context lines must match the current file contents exactly.

## Failing patch
` + "```diff" + `
{{failed_patch}}
` + "```" + `

## Apply error
` + "```" + `
{{apply_error}}
` + "```" + `

## Current file contents
{{snapshots}}
`
