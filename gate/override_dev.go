//go:build devaccess

package gate

const overrideCompiled = true
