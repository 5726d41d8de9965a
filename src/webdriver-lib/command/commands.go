package command

// Commands understood by the default tables.
const (
	Status        Name = "status"
	NewSession    Name = "newSession"
	DeleteSession Name = "deleteSession"
	GetSessions   Name = "getSessions"
	SetTimeouts   Name = "setTimeouts"
	GetTimeouts   Name = "getTimeouts"

	// Navigation.
	Get           Name = "get"
	GetCurrentURL Name = "getCurrentUrl"
	Back          Name = "back"
	Forward       Name = "forward"
	Refresh       Name = "refresh"
	GetTitle      Name = "getTitle"
	GetPageSource Name = "getPageSource"

	// Windows and frames.
	GetWindowHandle     Name = "getWindowHandle"
	GetWindowHandles    Name = "getWindowHandles"
	SwitchToWindow      Name = "switchToWindow"
	CloseWindow         Name = "closeWindow"
	NewWindow           Name = "newWindow"
	GetWindowSize       Name = "getWindowSize"
	SetWindowSize       Name = "setWindowSize"
	GetWindowPosition   Name = "getWindowPosition"
	SetWindowPosition   Name = "setWindowPosition"
	GetWindowRect       Name = "getWindowRect"
	SetWindowRect       Name = "setWindowRect"
	MaximizeWindow      Name = "maximizeWindow"
	MinimizeWindow      Name = "minimizeWindow"
	FullscreenWindow    Name = "fullscreenWindow"
	SwitchToFrame       Name = "switchToFrame"
	SwitchToParentFrame Name = "switchToParentFrame"

	// Elements.
	FindElement           Name = "findElement"
	FindElements          Name = "findElements"
	FindChildElement      Name = "findChildElement"
	FindChildElements     Name = "findChildElements"
	GetActiveElement      Name = "getActiveElement"
	ClickElement          Name = "clickElement"
	ClearElement          Name = "clearElement"
	SubmitElement         Name = "submitElement"
	SendKeysToElement     Name = "sendKeysToElement"
	GetElementText        Name = "getElementText"
	GetElementTagName     Name = "getElementTagName"
	GetElementAttribute   Name = "getElementAttribute"
	GetElementProperty    Name = "getElementProperty"
	GetElementCSSValue    Name = "getElementCssValue"
	GetElementRect        Name = "getElementRect"
	GetElementLocation    Name = "getElementLocation"
	GetElementSize        Name = "getElementSize"
	IsElementSelected     Name = "isElementSelected"
	IsElementEnabled      Name = "isElementEnabled"
	IsElementDisplayed    Name = "isElementDisplayed"
	ElementEquals         Name = "elementEquals"
	TakeElementScreenshot Name = "takeElementScreenshot"

	// Scripts.
	ExecuteScript      Name = "executeScript"
	ExecuteAsyncScript Name = "executeAsyncScript"
	SetScriptTimeout   Name = "setScriptTimeout"
	ImplicitlyWait     Name = "implicitlyWait"

	// Cookies.
	GetAllCookies    Name = "getAllCookies"
	GetCookie        Name = "getCookie"
	AddCookie        Name = "addCookie"
	DeleteCookie     Name = "deleteCookie"
	DeleteAllCookies Name = "deleteAllCookies"

	// Alerts.
	AcceptAlert   Name = "acceptAlert"
	DismissAlert  Name = "dismissAlert"
	GetAlertText  Name = "getAlertText"
	SetAlertValue Name = "setAlertValue"

	// Interactions.
	Actions          Name = "actions"
	ReleaseActions   Name = "releaseActions"
	MouseMoveTo      Name = "mouseMoveTo"
	MouseDown        Name = "mouseDown"
	MouseUp          Name = "mouseUp"
	MouseClick       Name = "mouseClick"
	MouseDoubleClick Name = "mouseDoubleClick"
	SendKeysToActive Name = "sendKeysToActiveElement"

	TakeScreenshot Name = "takeScreenshot"
	GetLog         Name = "getLog"
	GetLogTypes    Name = "getAvailableLogTypes"
)

const (
	_session = "/session/:session_id"
	_element = _session + "/element/:id"
)

// Commands shared by both dialects.
var _base = map[Name]Spec{
	Status:        get("/status"),
	NewSession:    post("/session"),
	DeleteSession: del(_session),
	SetTimeouts:   post(_session + "/timeouts"),

	Get:           post(_session + "/url"),
	GetCurrentURL: get(_session + "/url"),
	Back:          post(_session + "/back"),
	Forward:       post(_session + "/forward"),
	Refresh:       post(_session + "/refresh"),
	GetTitle:      get(_session + "/title"),
	GetPageSource: get(_session + "/source"),

	SwitchToWindow:      post(_session + "/window"),
	CloseWindow:         del(_session + "/window"),
	SwitchToFrame:       post(_session + "/frame"),
	SwitchToParentFrame: post(_session + "/frame/parent"),

	FindElement:         post(_session + "/element"),
	FindElements:        post(_session + "/elements"),
	FindChildElement:    post(_element + "/element"),
	FindChildElements:   post(_element + "/elements"),
	ClickElement:        post(_element + "/click"),
	ClearElement:        post(_element + "/clear"),
	SendKeysToElement:   post(_element + "/value"),
	GetElementText:      get(_element + "/text"),
	GetElementTagName:   get(_element + "/name"),
	GetElementAttribute: get(_element + "/attribute/:name"),
	GetElementCSSValue:  get(_element + "/css/:property_name"),
	IsElementSelected:   get(_element + "/selected"),
	IsElementEnabled:    get(_element + "/enabled"),
	IsElementDisplayed:  get(_element + "/displayed"),

	GetAllCookies:    get(_session + "/cookie"),
	GetCookie:        get(_session + "/cookie/:name"),
	AddCookie:        post(_session + "/cookie"),
	DeleteCookie:     del(_session + "/cookie/:name"),
	DeleteAllCookies: del(_session + "/cookie"),

	TakeScreenshot: get(_session + "/screenshot"),
}

// JSON Wire Protocol shapes.
var _legacy = map[Name]Spec{
	GetSessions: get("/sessions"),

	GetWindowHandle:   get(_session + "/window_handle"),
	GetWindowHandles:  get(_session + "/window_handles"),
	GetWindowSize:     get(_session + "/window/:window_handle/size"),
	SetWindowSize:     post(_session + "/window/:window_handle/size"),
	GetWindowPosition: get(_session + "/window/:window_handle/position"),
	SetWindowPosition: post(_session + "/window/:window_handle/position"),
	MaximizeWindow:    post(_session + "/window/:window_handle/maximize"),

	GetActiveElement:   post(_session + "/element/active"),
	SubmitElement:      post(_element + "/submit"),
	GetElementLocation: get(_element + "/location"),
	GetElementSize:     get(_element + "/size"),
	ElementEquals:      get(_element + "/equals/:other"),

	ExecuteScript:      post(_session + "/execute"),
	ExecuteAsyncScript: post(_session + "/execute_async"),
	SetScriptTimeout:   post(_session + "/timeouts/async_script"),
	ImplicitlyWait:     post(_session + "/timeouts/implicit_wait"),

	AcceptAlert:   post(_session + "/accept_alert"),
	DismissAlert:  post(_session + "/dismiss_alert"),
	GetAlertText:  get(_session + "/alert_text"),
	SetAlertValue: post(_session + "/alert_text"),

	MouseMoveTo:      post(_session + "/moveto"),
	MouseDown:        post(_session + "/buttondown"),
	MouseUp:          post(_session + "/buttonup"),
	MouseClick:       post(_session + "/click"),
	MouseDoubleClick: post(_session + "/doubleclick"),
	SendKeysToActive: post(_session + "/keys"),

	GetLog:      post(_session + "/log"),
	GetLogTypes: get(_session + "/log/types"),
}

// W3C WebDriver shapes.
var _w3c = map[Name]Spec{
	GetTimeouts: get(_session + "/timeouts"),

	GetWindowHandle:   get(_session + "/window"),
	GetWindowHandles:  get(_session + "/window/handles"),
	NewWindow:         post(_session + "/window/new"),
	GetWindowSize:     get(_session + "/window/rect"),
	SetWindowSize:     post(_session + "/window/rect"),
	GetWindowPosition: get(_session + "/window/rect"),
	SetWindowPosition: post(_session + "/window/rect"),
	GetWindowRect:     get(_session + "/window/rect"),
	SetWindowRect:     post(_session + "/window/rect"),
	MaximizeWindow:    post(_session + "/window/maximize"),
	MinimizeWindow:    post(_session + "/window/minimize"),
	FullscreenWindow:  post(_session + "/window/fullscreen"),

	GetActiveElement:      get(_session + "/element/active"),
	GetElementProperty:    get(_element + "/property/:name"),
	GetElementRect:        get(_element + "/rect"),
	TakeElementScreenshot: get(_element + "/screenshot"),

	ExecuteScript:      post(_session + "/execute/sync"),
	ExecuteAsyncScript: post(_session + "/execute/async"),

	AcceptAlert:   post(_session + "/alert/accept"),
	DismissAlert:  post(_session + "/alert/dismiss"),
	GetAlertText:  get(_session + "/alert/text"),
	SetAlertValue: post(_session + "/alert/text"),

	Actions:        post(_session + "/actions"),
	ReleaseActions: del(_session + "/actions"),
}
