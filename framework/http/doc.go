// Package http provides JSON response helpers for handlers that expose the
// container over HTTP.
//
// # Response
//
//	res := gohttp.NewResponse(w)
//
//	res.JSON(200, data)           // raw JSON with status
//	res.Success(data)             // 200 {"data": ...}
//	res.NoContent()               // 204
//
//	res.Error(400, "bad input")   // {"message": "bad input"}
//	res.NotFound()                // 404 {"message": "Not found."}
//	res.ServerError()             // 500 {"message": "Server Error."}
//
//	// Resolution errors
//	if _, err := c.Get(id); err != nil {
//	    res.ContainerError(err)   // 404 / 409 / 400 / 501 / 500
//	}
package http
