package fetch

// Outcome tags a Response.
type Outcome int

const (
	// Ok means a terminal status (200 or 404) was received.
	Ok Outcome = iota
	// Failed means every attempt failed; Reason holds the last cause.
	Failed
)

// String returns the outcome name.
func (o Outcome) String() string {
	if o == Ok {
		return "ok"
	}
	return "failed"
}

// Response is the result of Fetcher.Get.
// It is either Ok with a decoded body and status code, or Failed with the
// reason of the last attempt.
type Response struct {
	Outcome    Outcome
	Body       string
	StatusCode int
	URL        string
	Reason     error
}

// OK reports whether the response carries a body.
func (r Response) OK() bool {
	return r.Outcome == Ok
}

// HasData reports whether the response is Ok with a non-empty body.
// Scrapers treat anything else as "no data".
func (r Response) HasData() bool {
	return r.Outcome == Ok && r.Body != ""
}

func okResponse(url string, status int, body string) Response {
	return Response{Outcome: Ok, URL: url, StatusCode: status, Body: body}
}

func failedResponse(url string, reason error) Response {
	return Response{Outcome: Failed, URL: url, Reason: reason}
}
