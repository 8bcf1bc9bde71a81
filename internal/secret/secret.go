// Package secret defines the external secret provider boundary: decrypting
// an McpServer's stored args/env for use at spawn time, and encrypting
// them before persistence. The default implementation uses
// nacl/secretbox, the idiomatic Go analogue of Fernet-style symmetric
// encryption.
package secret

// Provider decrypts and encrypts the sensitive fields of an McpServer
// definition (command args, env values) around the repository boundary.
type Provider interface {
	// DecryptArgs turns stored (possibly encrypted) args into plaintext
	// ready to pass to exec.Command.
	DecryptArgs(stored []string) ([]string, error)
	// DecryptEnv turns stored (possibly encrypted) env values into
	// plaintext ready to overlay onto a child process's environment.
	DecryptEnv(stored map[string]string) (map[string]string, error)
	// EncryptArgs prepares args for persistence.
	EncryptArgs(plaintext []string) ([]string, error)
	// EncryptEnv prepares env values for persistence.
	EncryptEnv(plaintext map[string]string) (map[string]string, error)
}
