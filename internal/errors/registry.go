package errors

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Build Artifacts (E100-E109)
	// ============================================

	"E100": {
		Category: CategoryBuild,
		Message:  "Build info missing",
		Detail:   "The build-info record was not found in the build context. Run the build (or 'splitrender keygen') before serving.",
	},
	"E101": {
		Category: CategoryBuild,
		Message:  "Build info corrupt",
		Detail:   "The build-info record exists but could not be read, is not valid JSON, or its key is not a base64 encoded 32 byte value.",
	},

	// ============================================
	// Envelope (E110-E119)
	// ============================================

	"E110": {
		Category: CategoryCrypto,
		Message:  "Crypto backend unavailable",
		Detail:   "The random source or block cipher could not be used to seal the state envelope. The request is aborted.",
	},
	"E111": {
		Category: CategoryCrypto,
		Message:  "Envelope decryption failed",
		Detail:   "The envelope was sealed with a different key, is truncated, or has been modified.",
	},
	"E112": {
		Category: CategoryCrypto,
		Message:  "Invalid envelope key",
		Detail:   "Envelope keys must be exactly 32 bytes.",
	},

	// ============================================
	// Assets (E120-E129)
	// ============================================

	"E120": {
		Category: CategoryAsset,
		Message:  "Asset not found",
		Detail:   "A chunk referenced during rendering has no entry in the build manifest. Its stylesheet is omitted.",
	},
	"E121": {
		Category: CategoryAsset,
		Message:  "Build manifest corrupt",
		Detail:   "The build manifest is missing or assetsByChunkName is not an object of file names.",
	},

	// ============================================
	// Rendering (E130-E139)
	// ============================================

	"E130": {
		Category: CategoryRender,
		Message:  "Render threw",
		Detail:   "The application returned an error or panicked during a render round. The request is aborted.",
	},
	"E131": {
		Category: CategoryRender,
		Message:  "Unknown code split",
		Detail:   "A split placeholder referenced an id that was never defined in the module cache.",
	},
	"E132": {
		Category: CategoryRender,
		Message:  "Duplicate code split",
		Detail:   "A split id was defined twice in the module cache. Definitions are append-only.",
	},

	// ============================================
	// Configuration (E140-E149)
	// ============================================

	"E140": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
		Detail:   "The server configuration file could not be parsed or failed validation.",
	},
	"E141": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
	},
}
