// Package cli is the interactive cardgpt command-line client.
//
// NewApp wires configuration, the local credential database, the HTTP
// transport, the session and generation services and the view
// coordinator. App.Run resolves the stored session and then reads commands
// until the user quits:
//
//	generate [count] <category>   generate word pairs, revealed one by one
//	gensave [count] <category>    generate and save in one step
//	save <name>                   save the last generation
//	download [file]               fetch the PDF of the last generation
//	saved                         list your saved card sets
//	delete <id>                   delete a saved set (asks first)
//	fetch <id> [file]             fetch the PDF of a saved set
//	community                     browse sets shared by everybody
//	login | register | logout | whoami
package cli
