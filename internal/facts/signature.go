package facts

import "strings"

// NormalizeSignature strips qualified type prefixes from parameter types so
// "swap(PoolKey,IPoolManager.SwapParams,bytes)" matches
// "swap(PoolKey,SwapParams,bytes)". Callers may qualify struct types by their
// declaring interface while the analyzer stores the short form, or vice versa.
// The function name itself is never modified.
func NormalizeSignature(sig string) string {
	name, rest, ok := strings.Cut(sig, "(")
	if !ok {
		return sig
	}
	params := strings.TrimSuffix(rest, ")")
	if params == "" {
		return sig
	}

	parts := strings.Split(params, ",")
	for i, param := range parts {
		param = strings.TrimSpace(param)
		suffix := ""
		if strings.HasSuffix(param, "[]") {
			suffix = "[]"
			param = strings.TrimSuffix(param, "[]")
		}
		if idx := strings.LastIndex(param, "."); idx >= 0 {
			param = param[idx+1:]
		}
		parts[i] = param + suffix
	}
	return name + "(" + strings.Join(parts, ",") + ")"
}

// SignaturesMatch compares two signatures, first exactly, then normalized.
func SignaturesMatch(a, b string) bool {
	if a == b {
		return true
	}
	return NormalizeSignature(a) == NormalizeSignature(b)
}

// SplitQualified splits a contract-qualified signature
// ("Vault.withdraw(uint256)") into contract name and bare signature.
// The contract part is empty when the signature is unqualified.
func SplitQualified(qualified string) (contract, sig string) {
	head, _, _ := strings.Cut(qualified, "(")
	if !strings.Contains(head, ".") {
		return "", qualified
	}
	contract, sig, _ = strings.Cut(qualified, ".")
	return contract, sig
}
