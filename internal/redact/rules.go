package redact

type builtinRule struct {
	name        string
	category    Category
	pattern     string
	replacement string
}

var defaultSeverities = map[Category]Severity{
	CategoryCredential:       SeverityCritical,
	CategoryPrivateKey:       SeverityCritical,
	CategoryCertificate:      SeverityCritical,
	CategoryToken:            SeverityHigh,
	CategoryConnectionString: SeverityHigh,
	CategoryURLParameter:     SeverityHigh,
	CategoryEncodedBlob:      SeverityHigh,
	CategoryEmail:            SeverityMedium,
	CategoryPhone:            SeverityMedium,
	CategoryIPAddress:        SeverityLow,
	CategoryDomain:           SeverityLow,
}

var defaultSensitiveParams = []string{
	"api_key", "apikey", "key", "token", "access_token",
	"secret", "client_secret", "password", "pwd",
}

var defaultSensitiveKeywords = []string{"password", "secret", "key", "token", "private", "api"}

const defaultBlobMinLength = 100

// builtinRules is scanned in slice order within each category.
var builtinRules = []builtinRule{
	// AWS access key IDs
	{"aws-access-key-id", CategoryCredential, `\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`, "[API_KEY_REMOVED]"},
	// AWS secret access keys
	{"aws-secret-access-key", CategoryCredential,
		`(?i)aws[_-]?secret[_-]?access[_-]?key\s*[:=]\s*["']?(?P<value>[A-Za-z0-9/+=]{40})`, "[API_KEY_REMOVED]"},
	// Generic API keys after common key names
	{"api-key", CategoryCredential,
		`(?i)(?:api[_-]?key|apikey|api[_-]?secret)\s*[:=]\s*["']?(?P<value>[A-Za-z0-9/+=_-]{16,})`, "[API_KEY_REMOVED]"},
	{"password", CategoryCredential,
		`(?i)(?:password|passwd|pwd)\s*[:=]\s*["']?(?P<value>[^\s"'\[][^\s"']{3,})`, "[PASSWORD_REMOVED]"},
	// Quoted secrets, tokens and credentials in assignments
	{"secret-assignment", CategoryCredential,
		`(?i)(?:secret|token|credential|passwd|password)\s*[:=]\s*["'](?P<value>[^"'\[][^"']{7,})["']`, ""},

	{"private-key-block", CategoryPrivateKey,
		`-----BEGIN (?:[A-Z0-9]+ )*PRIVATE KEY-----[\s\S]*?-----END (?:[A-Z0-9]+ )*PRIVATE KEY-----`, ""},
	// Truncated blocks still leak the key type and often the first lines.
	{"private-key-header", CategoryPrivateKey, `-----BEGIN (?:[A-Z0-9]+ )*PRIVATE KEY-----`, ""},

	{"certificate-block", CategoryCertificate,
		`-----BEGIN CERTIFICATE-----[\s\S]*?-----END CERTIFICATE-----`, ""},

	{"jwt", CategoryToken, `eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`, "[JWT_REMOVED]"},
	{"bearer", CategoryToken, `(?i)\bBearer\s+(?P<value>[A-Za-z0-9._~+/-]{20,}=*)`, ""},
	{"github-token", CategoryToken, `\bgh[pousr]_[A-Za-z0-9_]{36,}`, ""},
	{"slack-token", CategoryToken, `\bxox[bporas]-[A-Za-z0-9-]{10,}`, ""},
	{"anthropic-key", CategoryToken, `\bsk-ant-[A-Za-z0-9_-]{20,}`, ""},
	{"openai-key", CategoryToken, `\bsk-[A-Za-z0-9]{20,}`, ""},
	// Long hex strings assigned to key-like names
	{"hex-secret", CategoryToken, `(?i)\b(?:key|secret|token)\s*[:=]\s*["']?(?P<value>[0-9a-f]{32,})`, ""},

	{"dsn", CategoryConnectionString,
		`(?i)\b(?:postgres(?:ql)?|mysql|mariadb|mongodb(?:\+srv)?|rediss?|amqps?|mssql|sqlserver)://[^\s"'<>]+`, "[DATABASE_URL_REMOVED]"},
	{"jdbc", CategoryConnectionString, `(?i)\bjdbc:[a-z0-9]+://[^\s"'<>]+`, "[DATABASE_URL_REMOVED]"},

	{"email", CategoryEmail, `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, ""},

	// Mainland China mobile numbers
	{"cn-mobile", CategoryPhone, `\b1[3-9]\d{9}\b`, ""},
	{"intl-phone", CategoryPhone, `\+\d{1,3}[-.\s]?\(?\d{1,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}\b`, ""},
	{"nanp-phone", CategoryPhone, `(?:\(\d{3}\)\s?|\b\d{3}[-.])\d{3}[-.]\d{4}\b`, ""},

	{"ipv4", CategoryIPAddress,
		`\b(?:(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d\d|[1-9]?\d)\b`, ""},

	// Hostnames under private-use suffixes
	{"internal-host", CategoryDomain,
		`(?i)\b(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+(?:local|internal|corp|lan|intranet|private|localdomain)\b`, ""},
}
