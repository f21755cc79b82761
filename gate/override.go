//go:build !devaccess

package gate

// overrideCompiled is false in ordinary builds; WithDevOverride is inert
// unless the devaccess build tag is set.
const overrideCompiled = false
