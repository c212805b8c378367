package auth

import "github.com/dmitrijs2005/gophauth/internal/common"

// singleUseTokenSize is 160 bits of entropy.
const singleUseTokenSize = 20

// GenerateSingleUseToken returns a random hex token for email verification
// and password reset links.
func GenerateSingleUseToken() (string, error) {
	return common.MakeRandHexString(singleUseTokenSize)
}
