package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// registry maps error codes to their templates. K-codes match the codes
// carried by report.Error; P-codes match protocol error frames.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Registry Errors (K001-K009)
	// ============================================

	"K001": {
		Category:   CategoryRegistry,
		Message:    "Component not found",
		Detail:     "A mount or child placeholder named a component that is not registered.",
		Suggestion: "Register the definition before mounting, or pass the definition itself instead of its name.",
	},
	"K002": {
		Category: CategoryRegistry,
		Message:  "Duplicate component name",
		Detail:   "Two definitions were registered under the same name. Use Replace to swap a definition on purpose.",
	},
	"K003": {
		Category:   CategoryRegistry,
		Message:    "Mount target not found",
		Detail:     "The selector given as mount target matched no element of the document.",
		Suggestion: "Check the selector, or create the element before mounting.",
	},
	"K004": {
		Category: CategoryRegistry,
		Message:  "Invalid component reference",
		Detail:   "A reference must be a component name, a *Definition or a Loader.",
	},
	"K005": {
		Category: CategoryRegistry,
		Message:  "Component loader failed",
		Detail:   "A lazy reference could not be resolved into a definition.",
	},

	// ============================================
	// Setup Errors (K010-K019)
	// ============================================

	"K010": {
		Category: CategorySetup,
		Message:  "Setup failed",
		Detail:   "The component's setup function panicked. The instance was not mounted.",
	},
	"K011": {
		Category:   CategorySetup,
		Message:    "Reserved hook name holds a non-function",
		Detail:     "beforeMount, mount, beforeUpdate, update and unmount are always lifecycle hooks.",
		Suggestion: "Rename the value, or make it a func() or func() error.",
	},

	// ============================================
	// Evaluation Errors (K020-K029)
	// ============================================

	"K020": {
		Category: CategoryEvaluation,
		Message:  "Expression failed",
		Detail:   "A ${} expression or directive value did not compile or failed at runtime. The render pass was aborted and the previous tree kept.",
	},
	"K021": {
		Category:   CategoryEvaluation,
		Message:    "Event handler not found",
		Detail:     "An @event binding names something that is neither in the component's context nor a valid expression.",
		Suggestion: "Return the handler from setup, or use an inline expression.",
	},
	"K022": {
		Category: CategoryEvaluation,
		Message:  "Malformed markup",
		Detail:   "The template could not be tokenized into a tree.",
	},

	// ============================================
	// Hook Errors (K030-K039)
	// ============================================

	"K030": {
		Category: CategoryHook,
		Message:  "Lifecycle hook failed",
		Detail:   "A hook returned an error or panicked. Other hooks and instances were not affected.",
	},

	// ============================================
	// Reconcile Errors (K040-K049)
	// ============================================

	"K040": {
		Category:   CategoryReconcile,
		Message:    "Duplicate key among siblings",
		Detail:     "Two siblings share a key. The later one is matched by position.",
		Suggestion: "Derive keys from stable, unique item identifiers.",
	},
	"K041": {
		Category: CategoryReconcile,
		Message:  "Patch failed",
		Detail:   "A patch could not be applied to the live tree. The instance may be out of sync until its next render.",
	},

	// ============================================
	// Scheduler Errors (K050-K059)
	// ============================================

	"K050": {
		Category:   CategoryScheduler,
		Message:    "Update loop detected",
		Detail:     "Flushes kept scheduling further flushes beyond the cascade limit. Pending renders were dropped.",
		Suggestion: "Avoid writing signals from update hooks unconditionally.",
	},
	"K051": {
		Category: CategoryScheduler,
		Message:  "Render panicked",
		Detail:   "A render pass panicked. The flush continued with the remaining instances.",
	},

	// ============================================
	// Watcher and Handler Errors (K060-K079)
	// ============================================

	"K060": {
		Category: CategoryWatcher,
		Message:  "Signal watcher failed",
		Detail:   "A subscriber panicked while being notified. Remaining subscribers were still notified.",
	},
	"K070": {
		Category: CategoryHandler,
		Message:  "Event handler failed",
		Detail:   "An event handler returned an error or panicked.",
	},

	// ============================================
	// Document Errors (K080-K089)
	// ============================================

	"K080": {
		Category:   CategoryDocument,
		Message:    "Invalid component document",
		Detail:     "The document failed validation. Every problem found is listed.",
		Suggestion: "Run 'kiln check' after each edit.",
	},
	"K081": {
		Category: CategoryDocument,
		Message:  "Unreadable component document",
		Detail:   "The file could not be read or parsed as YAML or TOML.",
	},

	// ============================================
	// Protocol Errors (P001-P100)
	// ============================================

	"P001": {
		Category: CategoryProtocol,
		Message:  "Invalid frame",
	},
	"P002": {
		Category: CategoryProtocol,
		Message:  "Invalid event",
	},
	"P003": {
		Category: CategoryProtocol,
		Message:  "Unknown event target",
		Detail:   "The node the event was addressed to is no longer in the document.",
	},
	"P004": {
		Category: CategoryProtocol,
		Message:  "Session not found",
		Detail:   "The session ID is invalid or the session has expired.",
	},
	"P100": {
		Category: CategoryProtocol,
		Message:  "Server error",
	},

	// ============================================
	// Config Errors (C001-C009)
	// ============================================

	"C001": {
		Category:   CategoryConfig,
		Message:    "Invalid kiln.toml",
		Detail:     "The configuration file could not be parsed.",
		Suggestion: "Check the TOML syntax and the key names.",
	},
	"C002": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	"C003": {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Suggestion: "Create kiln.toml in the project root or pass --config.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registry[code] = template
}
