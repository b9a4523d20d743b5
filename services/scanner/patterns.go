// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

// secretPlaceholders excludes obvious placeholder and environment-sourced values.
const secretPlaceholders = `(?i)(?:example|placeholder|your[_-]?(?:api[_-]?)?(?:key|token|secret)|changeme|xxxxxx|<[a-z_ -]+>|\$\{|process\.env|os\.environ|getenv)`

// sqlShape returns an expression for a SQL-shaped statement prefix whose
// free-text runs stop at the given (already escaped) quote characters.
func sqlShape(quotes string) string {
	run := `[^` + quotes + `\n]*`
	return `(?:select\b` + run + `\bfrom\b|insert\s+into\b|update\b` + run + `\bset\b|delete\s+from\b|drop\s+(?:table|database)\b|union\s+(?:all\s+)?select\b)`
}

// fileCalls is the set of file-system calls checked for traversal.
const fileCalls = `(?:readFile|readFileSync|writeFile|writeFileSync|appendFile|appendFileSync|createReadStream|createWriteStream|unlink|unlinkSync|readdir|readdirSync|sendFile|open)`

// defaultPatterns returns the built-in pattern table.
//
// Keyword sets of the secret patterns are disjoint so one literal produces
// one secret_exposure finding. Overlap across categories is allowed.
func defaultPatterns() []Pattern {
	return []Pattern{
		// =================================================================
		// Hardcoded secrets (CWE-798)
		// =================================================================
		{
			ID:       "CG-SEC-001",
			Category: CategorySecretExposure,
			Expr:     `(?i)[a-z0-9_]*(?:api[_-]?key|secret[_-]?key|client[_-]?secret|access[_-]?key|auth[_-]?token|access[_-]?token|secret|token)[a-z0-9_]*["']?\s*[:=]\s*["']([^"'\s]{10,})["']`,
			Exclude:  secretPlaceholders,
			Severity: SeverityHigh,
			CWE:      "CWE-798",
			Description: "Hardcoded credential: an API key, token or secret is assigned " +
				"from a string literal and will be exposed to anyone with source access",
			Remediation: []string{
				"Move the secret to an environment variable or a secrets manager",
				"Rotate the exposed credential immediately",
				"Add a pre-commit secret scanner to prevent regressions",
			},
		},
		{
			ID:          "CG-SEC-002",
			Category:    CategorySecretExposure,
			Expr:        `(?i)[a-z0-9_]*passw(?:or)?d[a-z0-9_]*["']?\s*[:=]\s*["']([^"'\s]{6,})["']`,
			Exclude:     secretPlaceholders,
			Severity:    SeverityHigh,
			CWE:         "CWE-798",
			Description: "Hardcoded password assigned from a string literal",
			Remediation: []string{
				"Load passwords from configuration or a secrets manager at runtime",
				"Rotate the exposed password",
			},
		},
		{
			ID:          "CG-SEC-003",
			Category:    CategorySecretExposure,
			Expr:        `-----BEGIN (?:RSA |EC |DSA |OPENSSH |ENCRYPTED |PGP )?PRIVATE KEY(?: BLOCK)?-----`,
			Severity:    SeverityCritical,
			CWE:         "CWE-798",
			Description: "Private key material embedded in source",
			Remediation: []string{
				"Remove the key from source and history, then revoke and reissue it",
				"Load keys from a key management service or mounted secret",
			},
		},
		{
			ID:          "CG-SEC-004",
			Category:    CategorySecretExposure,
			Expr:        `\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`,
			Severity:    SeverityHigh,
			CWE:         "CWE-798",
			Description: "AWS access key ID in source",
			Remediation: []string{
				"Deactivate the key in IAM and create a new one",
				"Use instance roles or the default credential chain instead of static keys",
			},
		},
		{
			ID:          "CG-SEC-005",
			Category:    CategorySecretExposure,
			Expr:        `\b(?:gh[pousr]_[A-Za-z0-9]{36,}|[sr]k_live_[0-9A-Za-z]{24,}|xox[abprs]-[0-9A-Za-z-]{10,})`,
			Severity:    SeverityHigh,
			CWE:         "CWE-798",
			Description: "Provider token (GitHub, Stripe or Slack) in source",
			Remediation: []string{
				"Revoke the token with the issuing provider",
				"Inject tokens through the deployment environment",
			},
		},
		{
			ID:          "CG-SEC-006",
			Category:    CategorySecretExposure,
			Expr:        `(?i)\b(?:mongodb(?:\+srv)?|postgres(?:ql)?|mysql|mariadb|redis|amqps?|mssql)://[^\s:@/'"]+:[^\s@/'"]+@`,
			Exclude:     `(?i)(?:\$\{|<password>|:password@|:pass@|user:pass)`,
			Severity:    SeverityHigh,
			CWE:         "CWE-798",
			Description: "Connection string with embedded credentials",
			Remediation: []string{
				"Build the connection string from separately managed credentials",
				"Rotate the database or broker password",
			},
		},

		// =================================================================
		// SQL injection (CWE-89)
		// =================================================================
		{
			ID:          "CG-SQL-001",
			Category:    CategorySQLInjection,
			Expr:        `(?i)(?:"\s*` + sqlShape(`"`) + `[^"\n]*"|'\s*` + sqlShape(`'`) + `[^'\n]*')\s*\+\s*[A-Za-z_$(]`,
			Severity:    SeverityHigh,
			CWE:         "CWE-89",
			Description: "SQL query built by string concatenation with a variable",
			Remediation: []string{
				"Use parameterized queries or prepared statements",
				"Validate and whitelist any identifiers that cannot be parameterized",
			},
		},
		{
			ID:          "CG-SQL-002",
			Category:    CategorySQLInjection,
			Expr:        `(?i)\x60\s*` + sqlShape(`\x60`) + `[^\x60]*\$\{`,
			Severity:    SeverityHigh,
			CWE:         "CWE-89",
			Description: "SQL query built with template-literal interpolation",
			Remediation: []string{
				"Use parameterized queries or a tagged-template SQL builder that escapes values",
			},
		},
		{
			ID:          "CG-SQL-003",
			Category:    CategorySQLInjection,
			Expr:        `(?i)(?:\bf["']\s*` + sqlShape(`"'`) + `[^"'\n]*\{|["']\s*` + sqlShape(`"'`) + `[^"'\n]*%s[^"'\n]*["']\s*%|["']\s*` + sqlShape(`"'`) + `[^"'\n]*\{\}[^"'\n]*["']\.format\()`,
			Severity:    SeverityHigh,
			CWE:         "CWE-89",
			Description: "SQL query built with string formatting",
			Remediation: []string{
				"Pass values as query parameters to the database driver instead of formatting them in",
			},
			Languages: []string{"python"},
		},

		// =================================================================
		// Cross-site scripting (CWE-79)
		// =================================================================
		{
			ID:          "CG-XSS-001",
			Category:    CategoryXSS,
			Expr:        `\.(?:inner|outer)HTML\s*\+?=[^=]`,
			Severity:    SeverityHigh,
			CWE:         "CWE-79",
			Description: "Assignment to innerHTML/outerHTML can execute injected markup",
			Remediation: []string{
				"Use textContent for text, or sanitize HTML with a vetted library such as DOMPurify",
				"Apply a Content Security Policy",
			},
		},
		{
			ID:          "CG-XSS-002",
			Category:    CategoryXSS,
			Expr:        `\bdocument\.write(?:ln)?\s*\(`,
			Severity:    SeverityMedium,
			CWE:         "CWE-79",
			Description: "document.write injects unescaped markup into the page",
			Remediation: []string{
				"Create elements with the DOM API and set textContent instead",
			},
		},
		{
			ID:          "CG-XSS-003",
			Category:    CategoryXSS,
			Expr:        `\.insertAdjacentHTML\s*\(|\bdangerouslySetInnerHTML\s*=|\$\([^)\n]*\)\.(?:html|append|prepend)\(\s*[A-Za-z_$]`,
			Severity:    SeverityMedium,
			CWE:         "CWE-79",
			Description: "Unsanitized HTML injection into the DOM",
			Remediation: []string{
				"Sanitize HTML before insertion or render text nodes",
			},
		},

		// =================================================================
		// Weak cryptography (CWE-327, CWE-338)
		// =================================================================
		{
			ID:          "CG-CRY-001",
			Category:    CategoryWeakCrypto,
			Expr:        `(?i)\b(?:md5|sha1)(?:\s*\(|\.(?:new|sum)\b)|createHash\(\s*["'](?:md5|sha1)["']`,
			Severity:    SeverityMedium,
			CWE:         "CWE-327",
			Description: "MD5/SHA-1 are broken for security purposes",
			Remediation: []string{
				"Use SHA-256 or stronger for integrity checks",
				"Use bcrypt, scrypt or Argon2 for password hashing",
			},
		},
		{
			ID:          "CG-CRY-002",
			Category:    CategoryWeakCrypto,
			Expr:        `\bMath\.random\s*\(`,
			Severity:    SeverityMedium,
			CWE:         "CWE-338",
			Description: "Math.random is not a cryptographically secure random source",
			Remediation: []string{
				"Use crypto.getRandomValues or crypto.randomBytes for tokens, IDs and keys",
			},
		},
		{
			ID:          "CG-CRY-003",
			Category:    CategoryWeakCrypto,
			Expr:        `(?i)["'](?:des|des-ede3?|des-cbc|rc2|rc4|bf|blowfish)(?:-[a-z0-9]+)?["']|["']aes-\d{3}-ecb["']|\bAES/ECB/|\bcreateCipher\s*\(`,
			Severity:    SeverityMedium,
			CWE:         "CWE-327",
			Description: "Weak cipher or insecure cipher mode",
			Remediation: []string{
				"Use AES-GCM or ChaCha20-Poly1305 with createCipheriv and random IVs",
			},
		},

		// =================================================================
		// Code injection (CWE-95)
		// =================================================================
		{
			ID:          "CG-COD-001",
			Category:    CategoryCodeInjection,
			Expr:        `\beval\s*\(`,
			Severity:    SeverityCritical,
			CWE:         "CWE-95",
			Description: "eval executes arbitrary code from a string",
			Remediation: []string{
				"Remove eval; parse data with JSON.parse or use explicit dispatch tables",
			},
		},
		{
			ID:          "CG-COD-002",
			Category:    CategoryCodeInjection,
			Expr:        `\bnew\s+Function\s*\(`,
			Severity:    SeverityHigh,
			CWE:         "CWE-95",
			Description: "The Function constructor compiles code from strings",
			Remediation: []string{
				"Replace dynamic code generation with predefined functions",
			},
		},
		{
			ID:          "CG-COD-003",
			Category:    CategoryCodeInjection,
			Expr:        "\\bset(?:Timeout|Interval)\\s*\\(\\s*[\"'\\x60]",
			Severity:    SeverityHigh,
			CWE:         "CWE-95",
			Description: "setTimeout/setInterval with a string argument evaluates code",
			Remediation: []string{
				"Pass a function reference instead of a string",
			},
		},
		{
			ID:          "CG-COD-004",
			Category:    CategoryCodeInjection,
			Expr:        `\bvm\.run(?:InNewContext|InThisContext|InContext)\s*\(`,
			Severity:    SeverityHigh,
			CWE:         "CWE-95",
			Description: "Node vm execution of dynamic code is not a security boundary",
			Remediation: []string{
				"Avoid executing untrusted code; use an isolated process if unavoidable",
			},
		},

		// =================================================================
		// Command injection (CWE-78)
		// =================================================================
		{
			ID:          "CG-CMD-001",
			Category:    CategoryCommandInjection,
			Expr:        `\b(?:exec|execSync)\s*\(`,
			Severity:    SeverityHigh,
			CWE:         "CWE-78",
			Description: "Shell command execution; unsanitized input allows command injection",
			Remediation: []string{
				"Use execFile/spawn with an argument array instead of a shell string",
				"Validate input against an allow-list",
			},
		},
		{
			ID:          "CG-CMD-002",
			Category:    CategoryCommandInjection,
			Expr:        `\bspawn(?:Sync)?\s*\([^)\n]*shell\s*:\s*true|\bos\.system\s*\(|\bsubprocess\.\w+\([^)\n]*shell\s*=\s*True`,
			Severity:    SeverityHigh,
			CWE:         "CWE-78",
			Description: "Process spawned through a shell",
			Remediation: []string{
				"Disable shell mode and pass arguments as a list",
			},
		},
		{
			ID:          "CG-CMD-003",
			Category:    CategoryCommandInjection,
			Expr:        `\bexec\.Command(?:Context)?\((?:\s*ctx\s*,)?\s*"(?:/bin/)?(?:sh|bash|zsh|cmd(?:\.exe)?)"\s*,\s*"(?:-c|/c)"`,
			Severity:    SeverityHigh,
			CWE:         "CWE-78",
			Description: "Command executed through a shell interpreter",
			Remediation: []string{
				"Invoke the target binary directly with separate arguments",
			},
			Languages: []string{"go"},
		},

		// =================================================================
		// Path traversal (CWE-22)
		// =================================================================
		{
			ID:          "CG-PTH-001",
			Category:    CategoryPathTraversal,
			Expr:        `\b` + fileCalls + `\s*\([^)\n]*\.\.[/\\]`,
			Severity:    SeverityHigh,
			CWE:         "CWE-22",
			Description: "File-system call with a relative parent-directory path",
			Remediation: []string{
				"Resolve paths against a fixed base directory and reject results outside it",
			},
		},
		{
			ID:          "CG-PTH-002",
			Category:    CategoryPathTraversal,
			Expr:        `\b(?:` + fileCalls + `|path\.join|path\.resolve)\s*\([^)\n]*\b(?:req|request)\.(?:params|query|body|files)`,
			Severity:    SeverityHigh,
			CWE:         "CWE-22",
			Description: "File path built from request input without sanitization",
			Remediation: []string{
				"Normalize the path and verify it stays under the allowed root",
				"Map user input to known file identifiers instead of raw paths",
			},
		},
	}
}
