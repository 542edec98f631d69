// Package banner renders the startup banner printed to stderr.
package banner

import "fmt"

const art = `           ___ __                              
  ___ ___ / (_) /_  __ _  ___ _______ ____ 
 (_-</ _ \ / / __/ /  ' \/ -_) __/ _ '/ -_)
/___/ .__/_/_/\__/ /_/_/_/\__/_/  \_, /\__/ 
   /_/                           /___/      
`

// Banner returns the banner with the version line.
func Banner(version string) string {
	return fmt.Sprintf("%s  latent PCFG learner %s\n\n", art, version)
}
