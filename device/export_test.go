package device

// InstallID exposes installID to the external test package.
var InstallID = installID
