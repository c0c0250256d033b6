package rpc

const (
	AccountsService  = "useraccounts.v1.Accounts"
	DocumentsService = "useraccounts.v1.Documents"
)

// Full method names, as seen by interceptors.
const (
	MethodPing              = "/" + AccountsService + "/Ping"
	MethodSignUp            = "/" + AccountsService + "/SignUp"
	MethodGetSalt           = "/" + AccountsService + "/GetSalt"
	MethodSignIn            = "/" + AccountsService + "/SignIn"
	MethodRefreshToken      = "/" + AccountsService + "/RefreshToken"
	MethodSignOut           = "/" + AccountsService + "/SignOut"
	MethodVerifySession     = "/" + AccountsService + "/VerifySession"
	MethodUpdateDisplayName = "/" + AccountsService + "/UpdateDisplayName"
	MethodUpdateEmail       = "/" + AccountsService + "/UpdateEmail"
	MethodUpdateCredential  = "/" + AccountsService + "/UpdateCredential"

	MethodGet                   = "/" + DocumentsService + "/Get"
	MethodSet                   = "/" + DocumentsService + "/Set"
	MethodUpdate                = "/" + DocumentsService + "/Update"
	MethodDelete                = "/" + DocumentsService + "/Delete"
	MethodList                  = "/" + DocumentsService + "/List"
	MethodPresignAvatarUpload   = "/" + DocumentsService + "/PresignAvatarUpload"
	MethodPresignAvatarDownload = "/" + DocumentsService + "/PresignAvatarDownload"
)

var public = map[string]bool{
	MethodPing:         true,
	MethodSignUp:       true,
	MethodGetSalt:      true,
	MethodSignIn:       true,
	MethodRefreshToken: true,
}

// IsPublic reports whether fullMethod may be called without an access token.
func IsPublic(fullMethod string) bool {
	return public[fullMethod]
}
