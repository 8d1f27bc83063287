package apiserver

// ErrRecordExists is the fixed marker body returned by POST /record and
// POST /records when the offered record_id already exists (§6.1). Clients
// match it verbatim to distinguish a known conflict from any other 5xx/4xx
// body.
const ErrRecordExists = "ERR_RECORD_EXISTS"
