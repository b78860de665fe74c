package testutil

import (
	"net/http"

	id "compliancehub/pkg/domain"
	"compliancehub/pkg/requestcontext"
)

// withIdentity puts the caller on the request context the way the auth
// middleware does. An unparsable userID leaves req unauthenticated.
func withIdentity(req *http.Request, userID string, role id.Role, factoryID id.FactoryID) *http.Request {
	parsed, err := id.ParseUserID(userID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithIdentity(req.Context(), parsed, role, factoryID))
}

func AsFactory(req *http.Request, userID string, factoryID id.FactoryID) *http.Request {
	return withIdentity(req, userID, id.RoleFactory, factoryID)
}

func AsBuyer(req *http.Request, userID string) *http.Request {
	return withIdentity(req, userID, id.RoleBuyer, "")
}

func AsAdmin(req *http.Request, userID string) *http.Request {
	return withIdentity(req, userID, id.RoleAdmin, "")
}
