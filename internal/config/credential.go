package config

// APIKeyEnv names the environment variable carrying the completion service secret.
const APIKeyEnv = "OPENAI_API_KEY"

// Credential is the completion service secret. It is either present or
// absent; callers must go through Lookup to get at the value.
type Credential struct {
	secret  string
	present bool
}

// NewCredential returns a present credential, or an absent one for an
// empty secret.
func NewCredential(secret string) Credential {
	if secret == "" {
		return Credential{}
	}
	return Credential{secret: secret, present: true}
}

// NoCredential returns the absent credential.
func NoCredential() Credential {
	return Credential{}
}

// CredentialFromEnv resolves the credential once from an environment lookup.
func CredentialFromEnv(lookup func(string) (string, bool)) Credential {
	v, ok := lookup(APIKeyEnv)
	if !ok {
		return NoCredential()
	}
	return NewCredential(v)
}

// Lookup returns the secret and whether it is present.
func (c Credential) Lookup() (string, bool) {
	return c.secret, c.present
}

// String never prints the secret.
func (c Credential) String() string {
	if c.present {
		return "credential(set)"
	}
	return "credential(absent)"
}
