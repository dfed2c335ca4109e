package core

import "strings"

// AllowedReturnTypes lists the return types a method accepts. Methods that do
// not take a return type yield nil.
func AllowedReturnTypes(m Method) []ReturnType {
	switch {
	case m == MethodSignEvent:
		return []ReturnType{ReturnEvent, ReturnSignature}
	case m.encrypts():
		return []ReturnType{ReturnCiphertext}
	case m.decrypts():
		return []ReturnType{ReturnPlaintext}
	default:
		return nil
	}
}

// ResponseKey picks the outbound parameter name for req. An absent return type
// falls back to the method default; a return type outside allowed is an
// invalid_request.
func ResponseKey(req *Request, fallback string, allowed ...ReturnType) (string, error) {
	if req.ReturnType == ReturnDefault {
		return fallback, nil
	}
	if len(allowed) > 0 && !containsReturnType(allowed, req.ReturnType) {
		names := make([]string, 0, len(allowed))
		for _, rt := range allowed {
			names = append(names, rt.String())
		}
		return "", Errorf(CodeInvalidRequest, "returnType must be %s", strings.Join(names, " or "))
	}
	return req.ReturnType.ResponseKey(), nil
}

func containsReturnType(list []ReturnType, rt ReturnType) bool {
	for _, candidate := range list {
		if candidate == rt {
			return true
		}
	}
	return false
}
