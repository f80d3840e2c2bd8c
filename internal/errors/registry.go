package errors

import "sort"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// Codes used across the kernel.
const (
	CodeEvaluation        = "R001"
	CodeAmbiguousScope    = "R002"
	CodeArrayWithoutModel = "R003"
	CodeSelectNotMultiple = "R004"
	CodeNotContainer      = "R005"
	CodeInvalidInput      = "R006"
	CodeDestroyed         = "R007"
	CodeInterrupted       = "R008"
	CodeStoreKeyExists    = "R009"
	CodeCallbackPanic     = "R010"
	CodeConfigInvalid     = "R020"
	CodeConfigRead        = "R021"
	CodeCLIInput          = "R040"
)

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Kernel Errors (R001-R019)
	// ============================================

	CodeEvaluation: {
		Category: CategoryEvaluation,
		Message:  "Expression evaluation failed",
		Detail:   "The expression threw or could not be compiled. The call yields undefined.",
	},
	CodeAmbiguousScope: {
		Category: CategoryScope,
		Message:  "Ambiguous scope name",
		Detail:   "A global data property is shadowed by a property of the current scope. The scope value is used.",
	},
	CodeArrayWithoutModel: {
		Category: CategoryBinding,
		Message:  "Array binding without a model",
		Detail:   "A two-way binding to an array needs a model expression naming the value the consumer adds or removes.",
	},
	CodeSelectNotMultiple: {
		Category: CategoryBinding,
		Message:  "Select array binding is not multiple",
		Detail:   "A select binding to an array needs the multiple capability to carry several values.",
	},
	CodeNotContainer: {
		Category: CategoryTransform,
		Message:  "Value is not a container",
		Detail:   "Only string-keyed maps and slices can be made reactive.",
	},
	CodeInvalidInput: {
		Category: CategoryRuntime,
		Message:  "Invalid input data",
		Detail:   "The value passed to the runtime is not an object literal.",
	},
	CodeDestroyed: {
		Category: CategoryRuntime,
		Message:  "Runtime destroyed",
		Detail:   "The runtime instance has been destroyed and no longer accepts work.",
	},
	CodeInterrupted: {
		Category: CategoryEvaluation,
		Message:  "Expression interrupted",
		Detail:   "The expression exceeded its time budget or its context was cancelled.",
	},
	CodeStoreKeyExists: {
		Category: CategoryRuntime,
		Message:  "Store key already in use",
		Detail:   "There is already data stored under this key. Unset it first.",
	},
	CodeCallbackPanic: {
		Category: CategoryRuntime,
		Message:  "Callback panicked",
		Detail:   "A subscription or event callback panicked. The panic was recovered.",
	},

	// ============================================
	// Config Errors (R020-R039)
	// ============================================

	CodeConfigInvalid: {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "A configuration value is out of range.",
	},
	CodeConfigRead: {
		Category: CategoryConfig,
		Message:  "Configuration could not be read",
		Detail:   "The configuration file or environment could not be parsed.",
	},

	// ============================================
	// CLI Errors (R040-R059)
	// ============================================

	CodeCLIInput: {
		Category: CategoryCLI,
		Message:  "Invalid command input",
		Detail:   "A data file could not be loaded or decoded as a JSON object.",
	},
}

// GetAllCodes returns all registered codes in sorted order.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// GetTemplate returns the template for a code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
